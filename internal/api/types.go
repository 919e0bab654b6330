package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes a booth session in a transport-friendly format.
type Session struct {
	Token          string          `json:"token"`
	MementoType    string          `json:"mementoType"`
	Status         string          `json:"status"`
	Step           string          `json:"step"`
	VideoMode      string          `json:"videoMode,omitempty"`
	StyleID        string          `json:"styleId,omitempty"`
	CustomPrompt   string          `json:"customPrompt,omitempty"`
	VoiceType      string          `json:"voiceType,omitempty"`
	MusicCategory  string          `json:"musicCategory,omitempty"`
	OutputFormat   string          `json:"outputFormat,omitempty"`
	Progress       SessionProgress `json:"progress"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	FailureKind    string          `json:"failureKind,omitempty"`
	CaptureFailure string          `json:"captureFailure,omitempty"`
	HasCapture     bool            `json:"hasCapture"`
	HasResult      bool            `json:"hasResult"`
	ResultMime     string          `json:"resultMime,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
}

// SessionProgress captures generation progress for a session.
type SessionProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running      bool           `json:"running"`
	SessionStats map[string]int `json:"sessionStats"`
	LastError    string         `json:"lastError,omitempty"`
	LastSession  *Session       `json:"lastSession,omitempty"`
	StageHealth  []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	DatabasePath   string         `json:"databasePath"`
	LockFilePath   string         `json:"lockFilePath"`
	ShareAvailable bool           `json:"shareAvailable"`
	Limits         CaptureLimits  `json:"limits"`
	Workflow       WorkflowStatus `json:"workflow"`
}

// CaptureLimits publishes the booth capture policy so the kiosk can
// enforce it client-side before uploading.
type CaptureLimits struct {
	MaxClipSeconds   int   `json:"maxClipSeconds"`
	MaxMontageImages int   `json:"maxMontageImages"`
	MaxUploadBytes   int64 `json:"maxUploadBytes"`
}

// SessionStatsResponse provides a normalized session stats payload.
type SessionStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// SessionListResponse wraps a collection of sessions for API responses.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// StyleOption describes a selectable style preset.
type StyleOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// MusicOption describes a selectable montage music category.
type MusicOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ShareDescriptor tells the result screen how a memento can be retrieved.
type ShareDescriptor struct {
	Available   bool   `json:"available"`
	URL         string `json:"url,omitempty"`
	Unavailable string `json:"unavailableReason,omitempty"`
}
