package session

import (
	"errors"
	"fmt"
	"strings"

	"membooth/internal/music"
	"membooth/internal/services"
	"membooth/internal/styles"
)

// MissingPrerequisiteError reports that a workflow step was entered without
// the state it depends on, and names the step the visitor must return to.
type MissingPrerequisiteError struct {
	Step   Step
	Reason string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("missing prerequisite for %s step: %s", e.Step, e.Reason)
}

func (e *MissingPrerequisiteError) Unwrap() error {
	return services.ErrValidation
}

// RedirectStep extracts the recovery step from a validation error, defaulting
// to the capture step.
func RedirectStep(err error) Step {
	var missing *MissingPrerequisiteError
	if errors.As(err, &missing) {
		return missing.Step
	}
	return StepCapture
}

func missingCapture(reason string) error {
	return &MissingPrerequisiteError{Step: StepCapture, Reason: reason}
}

func missingSelection(reason string) error {
	return &MissingPrerequisiteError{Step: StepSelection, Reason: reason}
}

// ValidateForGeneration is the single guard for entering the processing
// step. Every caller that can start a generation (HTTP generate action,
// CLI retry, workflow stage) goes through this check so the "processing
// requires a captured asset" invariant lives in exactly one place.
func (s *Session) ValidateForGeneration(maxMontageImages int) error {
	switch s.MementoType {
	case TypePhoto:
		return s.validatePhoto()
	case TypeAudio:
		return s.validateAudio()
	case TypeVideo:
		return s.validateVideo(maxMontageImages)
	default:
		return missingCapture(fmt.Sprintf("unknown memento type %q", s.MementoType))
	}
}

func (s *Session) validatePhoto() error {
	if strings.TrimSpace(s.CapturedAsset) == "" {
		return missingCapture("no photo captured")
	}
	if !styles.IsValid(s.StyleID) {
		return missingSelection(fmt.Sprintf("unknown style %q", s.StyleID))
	}
	if _, ok := styles.PromptFor(s.StyleID, s.CustomPrompt); !ok {
		return missingSelection("custom style requires a prompt")
	}
	return nil
}

func (s *Session) validateAudio() error {
	if strings.TrimSpace(s.CapturedAsset) == "" {
		return missingCapture("no voice sample recorded")
	}
	if strings.TrimSpace(s.SpokenText) == "" {
		return missingSelection("text to speak must not be empty")
	}
	return nil
}

func (s *Session) validateVideo(maxMontageImages int) error {
	images, err := s.DecodeMontageImages()
	if err != nil {
		return missingCapture("stored montage frames are unreadable")
	}
	if len(images) == 0 {
		return missingCapture("no montage frames captured")
	}
	if maxMontageImages > 0 && len(images) > maxMontageImages {
		return missingCapture(fmt.Sprintf("at most %d montage frames allowed", maxMontageImages))
	}
	if s.MusicCategory != "" && !music.IsValid(s.MusicCategory) {
		return missingSelection(fmt.Sprintf("unknown music category %q", s.MusicCategory))
	}
	return nil
}
