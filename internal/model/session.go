package model

import "time"

// SessionStatus represents the lifecycle state of a batch session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Session tracks one batch run across multiple URLs. It is mutated only by
// the single worker goroutine that owns the batch; callers poll a projection.
type Session struct {
	ID             string        `json:"id"`
	Kind           DocumentKind  `json:"kind"`
	URLs           []string      `json:"urls"`
	Total          int           `json:"total"`
	ProcessedCount int           `json:"processed_count"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	Status         SessionStatus `json:"status"`
	CurrentURL     string        `json:"current_url,omitempty"`
	Summary        string        `json:"summary,omitempty"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// Progress returns the completion percentage for status polling.
func (s *Session) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ProcessedCount) / float64(s.Total) * 100
}

// Stage names the pipeline step a log entry belongs to.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageQuality  Stage = "quality_check"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

// LogStatus is the severity of a processing log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogWarning LogStatus = "warning"
	LogError   LogStatus = "error"
)

// ProcessingLogEntry records one pipeline stage transition for one URL.
// Entries for a given URL are appended in stage order.
type ProcessingLogEntry struct {
	SessionID string    `json:"session_id,omitempty"`
	URL       string    `json:"url"`
	Stage     Stage     `json:"stage"`
	Status    LogStatus `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
