package voiceclone_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"membooth/internal/services"
	"membooth/internal/services/voiceclone"
)

var wavHeader = []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E'}

func TestSynthesizeWithClonedVoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("text"); got != "Selamat datang" {
			t.Fatalf("unexpected text: %q", got)
		}
		if got := r.FormValue("voice_type"); got != voiceclone.VoiceClone {
			t.Fatalf("unexpected voice type: %q", got)
		}
		file, _, err := r.FormFile("audio_file")
		if err != nil {
			t.Fatalf("missing audio part: %v", err)
		}
		_ = file.Close()

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wavHeader)
	}))
	defer server.Close()

	client := voiceclone.NewClient(voiceclone.Config{Endpoint: server.URL, APIKey: "key"})
	result, err := client.Synthesize(context.Background(), voiceclone.Request{
		Text:      "Selamat datang",
		VoiceType: voiceclone.VoiceClone,
		Audio:     wavHeader,
		AudioMIME: "audio/wav",
	})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.MIME != "audio/wav" {
		t.Fatalf("unexpected mime: %q", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected audio payload")
	}
}

func TestSynthesizeStockVoiceNeedsNoSample(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if _, _, err := r.FormFile("audio_file"); err == nil {
			t.Fatal("stock voice request must not carry a sample")
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wavHeader)
	}))
	defer server.Close()

	client := voiceclone.NewClient(voiceclone.Config{Endpoint: server.URL})
	if _, err := client.Synthesize(context.Background(), voiceclone.Request{
		Text:      "hello",
		VoiceType: voiceclone.VoiceFemale,
	}); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
}

func TestSynthesizeValidatesLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the endpoint for invalid input")
	}))
	defer server.Close()

	client := voiceclone.NewClient(voiceclone.Config{Endpoint: server.URL})
	ctx := context.Background()

	if _, err := client.Synthesize(ctx, voiceclone.Request{Text: "  \t ", VoiceType: voiceclone.VoiceMale}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for blank text, got %v", err)
	}
	if _, err := client.Synthesize(ctx, voiceclone.Request{Text: "hi", VoiceType: "robot"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for unknown voice, got %v", err)
	}
	if _, err := client.Synthesize(ctx, voiceclone.Request{Text: "hi", VoiceType: voiceclone.VoiceClone}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker for clone without sample, got %v", err)
	}
}

func TestSynthesizePreservesServerMessage(t *testing.T) {
	const serverMessage = "voice sample too short: need at least 3 seconds"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(serverMessage))
	}))
	defer server.Close()

	client := voiceclone.NewClient(voiceclone.Config{Endpoint: server.URL})
	_, err := client.Synthesize(context.Background(), voiceclone.Request{
		Text:      "hello",
		VoiceType: voiceclone.VoiceClone,
		Audio:     wavHeader,
	})
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection marker, got %v", err)
	}
	if !strings.Contains(err.Error(), serverMessage) {
		t.Fatalf("server message lost: %v", err)
	}
}

func TestSynthesizeClassifiesTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := voiceclone.NewClient(
		voiceclone.Config{Endpoint: server.URL},
		voiceclone.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	_, err := client.Synthesize(context.Background(), voiceclone.Request{
		Text:      "hello",
		VoiceType: voiceclone.VoiceMale,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}

func TestKnownVoice(t *testing.T) {
	for _, voice := range []string{"male", "Female", " CLONE "} {
		if !voiceclone.KnownVoice(voice) {
			t.Fatalf("expected %q to be known", voice)
		}
	}
	if voiceclone.KnownVoice("robot") {
		t.Fatal("expected robot to be unknown")
	}
}
