// Package music lists the montage soundtrack categories the rendering
// service understands.
package music

import "strings"

// Category describes one selectable soundtrack flavor.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultID is used when the visitor skips the music step.
const DefaultID = "auto"

var categories = []Category{
	{ID: "auto", Name: "AI Auto-Select", Description: "Let AI analyze your photos and pick the best music"},
	{ID: "upbeat", Name: "Upbeat", Description: "Happy, energetic, fun"},
	{ID: "calm", Name: "Calm", Description: "Peaceful, relaxing, gentle"},
	{ID: "cinematic", Name: "Cinematic", Description: "Epic, dramatic, powerful"},
	{ID: "corporate", Name: "Corporate", Description: "Professional, motivational"},
	{ID: "asian", Name: "Asian", Description: "Traditional Asian influences"},
	{ID: "acoustic", Name: "Acoustic", Description: "Folk, guitar, organic"},
	{ID: "electronic", Name: "Electronic", Description: "Modern, digital, energetic"},
}

// Categories returns the selectable soundtrack categories.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValid reports whether id names a known category.
func IsValid(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, category := range categories {
		if category.ID == id {
			return true
		}
	}
	return false
}
