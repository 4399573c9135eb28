package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/hirelens/hirelens/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                    TEXT PRIMARY KEY,
	session_id            TEXT,
	source_url            TEXT NOT NULL,
	kind                  TEXT NOT NULL,
	fields                TEXT NOT NULL,
	ai_confidence         REAL NOT NULL DEFAULT 0,
	validation_confidence REAL NOT NULL DEFAULT 0,
	final_confidence      REAL NOT NULL DEFAULT 0,
	quality_label         TEXT NOT NULL DEFAULT 'unknown',
	quality_reason        TEXT,
	extraction_notes      TEXT,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	processed_at          DATETIME NOT NULL,
	processing_ms         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	urls            TEXT NOT NULL,
	total           INTEGER NOT NULL,
	processed_count INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	current_url     TEXT,
	summary         TEXT,
	error           TEXT,
	started_at      DATETIME NOT NULL,
	completed_at    DATETIME
);

CREATE TABLE IF NOT EXISTS processing_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session_id ON records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
CREATE INDEX IF NOT EXISTS idx_records_final_confidence ON records(final_confidence);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_processing_log_session_id ON processing_log(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ExtractedRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal fields")
	}
	notesJSON, err := json.Marshal(rec.ExtractionNotes)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal notes")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, session_id, source_url, kind, fields,
			ai_confidence, validation_confidence, final_confidence,
			quality_label, quality_reason, extraction_notes,
			input_tokens, output_tokens, processed_at, processing_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.SourceURL, string(rec.Kind), string(fieldsJSON),
		rec.AIConfidence, rec.ValidationConfidence, rec.FinalConfidence,
		string(rec.QualityLabel), rec.QualityReason, string(notesJSON),
		rec.TokenUsage.InputTokens, rec.TokenUsage.OutputTokens,
		rec.ProcessedAt, rec.ProcessingMillis,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert record")
	}
	return rec.ID, nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.ExtractedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, source_url, kind, fields,
			ai_confidence, validation_confidence, final_confidence,
			quality_label, quality_reason, extraction_notes,
			input_tokens, output_tokens, processed_at, processing_ms
		 FROM records WHERE id = ?`,
		id,
	)
	return scanRecord(row)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractedRecord, error) {
	query := `SELECT id, session_id, source_url, kind, fields,
		ai_confidence, validation_confidence, final_confidence,
		quality_label, quality_reason, extraction_notes,
		input_tokens, output_tokens, processed_at, processing_ms
	 FROM records WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.MinConfidence > 0 {
		query += ` AND final_confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	query += ` ORDER BY processed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ExtractedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) CreateSession(ctx context.Context, kind model.DocumentKind, urls []string) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal urls")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, kind, urls, total, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(urlsJSON), len(urls), string(model.SessionPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}

	return &model.Session{
		ID:        id,
		Kind:      kind,
		URLs:      urls,
		Total:     len(urls),
		Status:    model.SessionPending,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, urls, total, processed_count, success_count, failure_count,
			status, current_url, summary, error, started_at, completed_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	var sess model.Session
	var urlsJSON string
	var currentURL, summary, errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Kind, &urlsJSON, &sess.Total,
		&sess.ProcessedCount, &sess.SuccessCount, &sess.FailureCount,
		&sess.Status, &currentURL, &summary, &errMsg, &sess.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan session")
	}
	if err := json.Unmarshal([]byte(urlsJSON), &sess.URLs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal urls")
	}
	sess.CurrentURL = currentURL.String
	sess.Summary = summary.String
	sess.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, urls, total, processed_count, success_count, failure_count,
			status, current_url, summary, error, started_at, completed_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var urlsJSON string
		var currentURL, summary, errMsg sql.NullString
		var completedAt sql.NullTime
		err := rows.Scan(&sess.ID, &sess.Kind, &urlsJSON, &sess.Total,
			&sess.ProcessedCount, &sess.SuccessCount, &sess.FailureCount,
			&sess.Status, &currentURL, &summary, &errMsg, &sess.StartedAt, &completedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		if err := json.Unmarshal([]byte(urlsJSON), &sess.URLs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal urls")
		}
		sess.CurrentURL = currentURL.String
		sess.Summary = summary.String
		sess.Error = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			sess.CompletedAt = &t
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) UpdateSessionProgress(ctx context.Context, id string, processed, succeeded, failed int, currentURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, processed_count = ?, success_count = ?, failure_count = ?, current_url = ?
		 WHERE id = ?`,
		string(model.SessionRunning), processed, succeeded, failed, currentURL, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session progress %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) CompleteSession(ctx context.Context, id string, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, summary = ?, current_url = NULL, completed_at = ? WHERE id = ?`,
		string(model.SessionCompleted), summary, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete session %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) FailSession(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.SessionFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail session %s", id)
	}
	return checkRowsAffected(res, "session", id)
}

func (s *SQLiteStore) AppendLog(ctx context.Context, entry model.ProcessingLogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_log (session_id, url, stage, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID, entry.URL, string(entry.Stage), string(entry.Status), entry.Message, createdAt,
	)
	return eris.Wrap(err, "sqlite: append log")
}

func (s *SQLiteStore) ListLogs(ctx context.Context, sessionID string) ([]model.ProcessingLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, url, stage, status, message, created_at
		 FROM processing_log WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list logs")
	}
	defer rows.Close()

	var entries []model.ProcessingLogEntry
	for rows.Next() {
		var e model.ProcessingLogEntry
		var message sql.NullString
		if err := rows.Scan(&e.SessionID, &e.URL, &e.Stage, &e.Status, &message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log entry")
		}
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list logs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.ExtractedRecord, error) {
	var r model.ExtractedRecord
	var sessionID, qualityReason sql.NullString
	var fieldsJSON string
	var notesJSON sql.NullString

	err := row.Scan(&r.ID, &sessionID, &r.SourceURL, &r.Kind, &fieldsJSON,
		&r.AIConfidence, &r.ValidationConfidence, &r.FinalConfidence,
		&r.QualityLabel, &qualityReason, &notesJSON,
		&r.TokenUsage.InputTokens, &r.TokenUsage.OutputTokens,
		&r.ProcessedAt, &r.ProcessingMillis)
	if err == sql.ErrNoRows {
		return nil, eris.New("record not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	r.SessionID = sessionID.String
	r.QualityReason = qualityReason.String
	if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fields")
	}
	if notesJSON.Valid && notesJSON.String != "" {
		if err := json.Unmarshal([]byte(notesJSON.String), &r.ExtractionNotes); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal notes")
		}
	}
	return &r, nil
}
