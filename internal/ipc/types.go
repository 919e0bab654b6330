package ipc

import "membooth/internal/api"

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Session mirrors the HTTP API session DTO for internal IPC callers.
type Session = api.Session

// StageHealth describes readiness of a workflow stage.
type StageHealth = api.StageHealth

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running        bool           `json:"running"`
	SessionStats   map[string]int `json:"session_stats"`
	LastError      string         `json:"last_error"`
	LastSession    *Session       `json:"last_session"`
	LockPath       string         `json:"lock_path"`
	DatabasePath   string         `json:"database_path"`
	ShareAvailable bool           `json:"share_available"`
	StageHealth    []StageHealth  `json:"stage_health"`
	PID            int            `json:"pid"`
}

// SessionListRequest filters session listing by status.
type SessionListRequest struct {
	Statuses []string `json:"statuses"`
}

// SessionListResponse contains session entries.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionDescribeRequest fetches a single session by token.
type SessionDescribeRequest struct {
	Token string `json:"token"`
}

// SessionDescribeResponse contains a single session entry.
type SessionDescribeResponse struct {
	Session Session `json:"session"`
}

// SessionClearRequest removes all sessions.
type SessionClearRequest struct{}

// SessionClearResponse reports the clear outcome.
type SessionClearResponse struct {
	Cleared bool `json:"cleared"`
}

// SessionClearCompletedRequest removes completed sessions.
type SessionClearCompletedRequest struct{}

// SessionClearCompletedResponse reports number of removed entries.
type SessionClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// SessionClearFailedRequest removes failed sessions.
type SessionClearFailedRequest struct{}

// SessionClearFailedResponse reports number of removed entries.
type SessionClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// SessionResetRequest requeues in-flight sessions.
type SessionResetRequest struct{}

// SessionResetResponse reports number of sessions reset.
type SessionResetResponse struct {
	Updated int64 `json:"updated"`
}

// SessionRetryRequest retries failed sessions. Empty token means all failed sessions.
type SessionRetryRequest struct {
	Token string `json:"token"`
}

// SessionRetryResponse reports number of retried sessions.
type SessionRetryResponse struct {
	Updated int64 `json:"updated"`
}

// SessionRemoveRequest removes a specific session by token.
type SessionRemoveRequest struct {
	Token string `json:"token"`
}

// SessionRemoveResponse reports whether the session was removed.
type SessionRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SessionHealthRequest fetches aggregate diagnostics.
type SessionHealthRequest struct{}

// SessionHealthResponse reports session store health information.
type SessionHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Captured   int `json:"captured"`
	Queued     int `json:"queued"`
	Generating int `json:"generating"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
