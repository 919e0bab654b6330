package api

import (
	"slices"
	"time"

	"membooth/internal/music"
	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/styles"
	"membooth/internal/workflow"
)

// FromSession converts a session record to its API representation.
func FromSession(sess *session.Session) Session {
	if sess == nil {
		return Session{}
	}

	dto := Session{
		Token:       sess.Token,
		MementoType: string(sess.MementoType),
		Status:      string(sess.Status),
		Step:        string(sess.Step()),
		VideoMode:   string(sess.VideoMode),
		StyleID:     sess.StyleID,
		Progress: SessionProgress{
			Stage:   sess.ProgressStage,
			Percent: sess.ProgressPercent,
			Message: sess.ProgressMessage,
		},
		CustomPrompt:   sess.CustomPrompt,
		VoiceType:      sess.VoiceType,
		MusicCategory:  sess.MusicCategory,
		OutputFormat:   sess.OutputFormat,
		ErrorMessage:   sess.ErrorMessage,
		FailureKind:    sess.FailureKind,
		CaptureFailure: sess.CaptureFailure,
		HasCapture:     sess.HasCapture(),
		HasResult:      sess.GeneratedAsset != "",
		ResultMime:     sess.GeneratedMIME,
	}
	if !sess.CreatedAt.IsZero() {
		dto.CreatedAt = sess.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !sess.UpdatedAt.IsZero() {
		dto.UpdatedAt = sess.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromSessions converts a slice of session records into API DTOs.
func FromSessions(sessions []*session.Session) []Session {
	if len(sessions) == 0 {
		return nil
	}
	out := make([]Session, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, FromSession(sess))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:      summary.Running,
		SessionStats: MergeSessionStats(summary.SessionStats),
		StageHealth:  StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastSession != nil {
		last := FromSession(summary.LastSession)
		wf.LastSession = &last
	}
	return wf
}

// MergeSessionStats produces a string-keyed representation of session stats.
func MergeSessionStats(stats map[session.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// StyleOptions converts the style catalog into API DTOs.
func StyleOptions(catalog []styles.Style) []StyleOption {
	if len(catalog) == 0 {
		return nil
	}
	out := make([]StyleOption, 0, len(catalog))
	for _, style := range catalog {
		out = append(out, StyleOption{
			ID:          style.ID,
			Label:       style.DisplayName,
			Description: style.Description,
		})
	}
	return out
}

// MusicOptions converts montage music categories into API DTOs.
func MusicOptions(categories []music.Category) []MusicOption {
	if len(categories) == 0 {
		return nil
	}
	out := make([]MusicOption, 0, len(categories))
	for _, category := range categories {
		out = append(out, MusicOption{ID: category.ID, Label: category.Name})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
