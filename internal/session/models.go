package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"membooth/internal/services"
)

// MementoType selects which memento a session produces.
type MementoType string

const (
	TypePhoto MementoType = "photo"
	TypeVideo MementoType = "video"
	TypeAudio MementoType = "audio"
)

// ParseMementoType converts a string into a known MementoType.
func ParseMementoType(value string) (MementoType, bool) {
	normalized := MementoType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TypePhoto, TypeVideo, TypeAudio:
		return normalized, true
	}
	return "", false
}

// Status represents the lifecycle of a booth session. The ordering mirrors
// the visitor-facing workflow: welcome, capture, selection, processing,
// result.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCaptured   Status = "captured"
	StatusReady      Status = "ready"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InterruptedReason is the error message set when in-flight generations are
// failed due to daemon shutdown or a heartbeat expiry. Interrupted sessions
// are never retried automatically; the visitor or operator retries.
const InterruptedReason = "Generation interrupted"

var allStatuses = []Status{
	StatusPending,
	StatusCaptured,
	StatusReady,
	StatusGenerating,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Step names the workflow screen a visitor interacts with. Failure handling
// maps each failed session back to the step that can fix it.
type Step string

const (
	StepWelcome    Step = "welcome"
	StepCapture    Step = "capture"
	StepSelection  Step = "selection"
	StepProcessing Step = "processing"
	StepResult     Step = "result"
)

// StepForStatus maps a session status to the screen that should be shown.
// Failed sessions default to the selection step; use Session.Step for the
// failure-kind-aware mapping.
func StepForStatus(status Status) Step {
	switch status {
	case StatusPending:
		return StepCapture
	case StatusCaptured:
		return StepSelection
	case StatusReady, StatusGenerating:
		return StepProcessing
	case StatusCompleted:
		return StepResult
	case StatusFailed:
		return StepSelection
	default:
		return StepWelcome
	}
}

// VideoMode records how a video session's montage frames were produced.
type VideoMode string

const (
	// VideoModeStills means the frames are individual still captures.
	VideoModeStills VideoMode = "stills"
	// VideoModeClip means the frames were sampled from a recorded clip.
	VideoModeClip VideoMode = "clip"
)

// Session is one visitor's capture-to-result workflow, persisted in SQLite.
// All asset fields hold portable data URLs.
type Session struct {
	ID          int64
	Token       string
	MementoType MementoType
	Status      Status

	CapturedAsset string
	MontageImages string // JSON array of data URLs, video sessions only
	VideoMode     VideoMode

	StyleID       string
	CustomPrompt  string
	SpokenText    string
	VoiceType     string
	MusicCategory string
	OutputFormat  string

	GeneratedAsset string
	GeneratedMIME  string

	ErrorMessage   string
	FailureKind    string
	CaptureFailure string

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// Step resolves the screen a visitor should see for this session. For
// failed sessions the failure kind decides where recovery happens: a
// validation failure with no capture on file returns to the capture step,
// everything else resumes at selection with the captured assets intact.
func (s Session) Step() Step {
	if s.Status != StatusFailed {
		return StepForStatus(s.Status)
	}
	if s.FailureKind == string(services.KindValidation) && !s.HasCapture() {
		return StepCapture
	}
	return StepSelection
}

// HasCapture reports whether the session holds any captured input asset.
func (s Session) HasCapture() bool {
	return strings.TrimSpace(s.CapturedAsset) != "" || strings.TrimSpace(s.MontageImages) != ""
}

// IsProcessing returns true when the session has an in-flight generation.
func (s Session) IsProcessing() bool {
	return s.Status == StatusGenerating
}

// IsTerminal returns true for completed and failed sessions.
func (s Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// DecodeMontageImages unpacks the stored montage frame list.
func (s Session) DecodeMontageImages() ([]string, error) {
	if strings.TrimSpace(s.MontageImages) == "" {
		return nil, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(s.MontageImages), &images); err != nil {
		return nil, fmt.Errorf("decode montage images: %w", err)
	}
	return images, nil
}

// EncodeMontageImages packs a montage frame list for storage.
func EncodeMontageImages(images []string) (string, error) {
	if len(images) == 0 {
		return "", nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode montage images: %w", err)
	}
	return string(data), nil
}

// SetProgress updates all three progress fields together.
func (s *Session) SetProgress(stage, message string, percent float64) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetFailed marks the session as failed. The prior generated asset, if any,
// is deliberately left in place so a failed re-generation does not destroy
// an earlier result.
func (s *Session) SetFailed(kind, message string) {
	s.Status = StatusFailed
	s.FailureKind = kind
	s.ErrorMessage = message
	s.ProgressStage = "Failed"
	s.ProgressPercent = 0
	s.ProgressMessage = message
	s.LastHeartbeat = nil
}

// SetCompleted stores the generated artifact and moves the session to the
// result step.
func (s *Session) SetCompleted(assetDataURL, mimeType string) {
	s.Status = StatusCompleted
	s.GeneratedAsset = assetDataURL
	s.GeneratedMIME = mimeType
	s.ErrorMessage = ""
	s.FailureKind = ""
	s.LastHeartbeat = nil
	s.SetProgress("Completed", "Memento ready", 100)
}

// ClearAssets wipes captured and generated payloads. Used when a visitor
// starts over so no stale asset from a previous memento type can leak into
// the new workflow.
func (s *Session) ClearAssets() {
	s.CapturedAsset = ""
	s.MontageImages = ""
	s.VideoMode = ""
	s.StyleID = ""
	s.CustomPrompt = ""
	s.SpokenText = ""
	s.VoiceType = ""
	s.MusicCategory = ""
	s.GeneratedAsset = ""
	s.GeneratedMIME = ""
	s.ErrorMessage = ""
	s.FailureKind = ""
	s.CaptureFailure = ""
}
