package styles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CustomID selects a visitor-written prompt instead of a catalog style.
const CustomID = "custom"

// Style describes one heritage treatment offered on the selection screen.
type Style struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Prompt      string `json:"-"`
}

var titleCaser = cases.Title(language.English)

var catalog = []Style{
	{
		ID:          "batik",
		Description: "Warm batik patterns framing a souvenir postcard scene",
		Prompt: "Create a cheerful souvenir postcard landscape featuring traditional Malaysian batik patterns " +
			"as decorative borders and clothing accents, warm earthy tones, soft natural lighting, " +
			"photorealistic preserved facial features, cultural elegance, welcoming travel-memento mood, " +
			"and collectible postcard composition.",
	},
	{
		ID:          "songket",
		Description: "Elegant songket gold motifs with a royal glow",
		Prompt: "Generate an elegant souvenir landscape framed with intricate Malaysian songket gold motifs, " +
			"subtle royal glow, refined cinematic color grading, accurate realistic smiling face preserved " +
			"from original photo, premium cultural atmosphere, luxurious balance, and a high-quality " +
			"commemorative postcard aesthetic.",
	},
	{
		ID:          "vintage",
		Description: "Muted nostalgic colors in a classic tourism poster look",
		Prompt: "Design a vintage Malaysian travel-style souvenir landscape with muted nostalgic colors, " +
			"gentle film grain, classic tourism poster composition, photorealistic face preserved without " +
			"distortion, soft illustration-like realism applied only to background, warm retro mood, " +
			"and collectible postcard charm.",
	},
}

// Catalog returns the selectable heritage styles with display names filled in.
func Catalog() []Style {
	out := make([]Style, len(catalog))
	for i, style := range catalog {
		style.DisplayName = titleCaser.String(style.ID)
		out[i] = style
	}
	return out
}

// Lookup returns the catalog style matching id.
func Lookup(id string) (Style, bool) {
	id = Normalize(id)
	for _, style := range catalog {
		if style.ID == id {
			style.DisplayName = titleCaser.String(style.ID)
			return style, true
		}
	}
	return Style{}, false
}

// IsValid reports whether id names a catalog style or the custom sentinel.
func IsValid(id string) bool {
	id = Normalize(id)
	if id == CustomID {
		return true
	}
	_, ok := Lookup(id)
	return ok
}

// Normalize lowercases and trims a style identifier.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// PromptFor resolves the generation prompt for a selection. For the custom
// style the visitor's prompt is used as-is; it must be non-empty.
func PromptFor(id, customPrompt string) (string, bool) {
	id = Normalize(id)
	if id == CustomID {
		prompt := strings.TrimSpace(customPrompt)
		return prompt, prompt != ""
	}
	style, ok := Lookup(id)
	if !ok {
		return "", false
	}
	return style.Prompt, true
}
