// Package store persists extracted records, batch sessions, and the
// per-session processing log.
package store

import (
	"context"

	"github.com/hirelens/hirelens/internal/model"
)

// RecordFilter specifies criteria for listing extracted records.
type RecordFilter struct {
	Kind          model.DocumentKind `json:"kind,omitempty"`
	SessionID     string             `json:"session_id,omitempty"`
	MinConfidence float64            `json:"min_confidence,omitempty"`
	Limit         int                `json:"limit,omitempty"`
	Offset        int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the extraction pipeline.
// The pipeline calls these at its state-machine boundaries and does not
// depend on the backing schema.
type Store interface {
	// Records
	SaveRecord(ctx context.Context, rec *model.ExtractedRecord) (string, error)
	GetRecord(ctx context.Context, id string) (*model.ExtractedRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractedRecord, error)

	// Sessions
	CreateSession(ctx context.Context, kind model.DocumentKind, urls []string) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)
	UpdateSessionProgress(ctx context.Context, id string, processed, succeeded, failed int, currentURL string) error
	CompleteSession(ctx context.Context, id string, summary string) error
	FailSession(ctx context.Context, id string, errMsg string) error

	// Processing log
	AppendLog(ctx context.Context, entry model.ProcessingLogEntry) error
	ListLogs(ctx context.Context, sessionID string) ([]model.ProcessingLogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
