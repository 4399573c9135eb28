package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hirelens/hirelens/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Satisfied by
// *pgxpool.Pool in production and pgxmock.PgxPoolIface in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given DSN, tunes the pool, and verifies the
// connection with a ping.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                    TEXT PRIMARY KEY,
	session_id            TEXT,
	source_url            TEXT NOT NULL,
	kind                  TEXT NOT NULL,
	fields                JSONB NOT NULL,
	ai_confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	validation_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	final_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_label         TEXT NOT NULL DEFAULT 'unknown',
	quality_reason        TEXT,
	extraction_notes      JSONB,
	input_tokens          BIGINT NOT NULL DEFAULT 0,
	output_tokens         BIGINT NOT NULL DEFAULT 0,
	processed_at          TIMESTAMPTZ NOT NULL,
	processing_ms         BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	urls            JSONB NOT NULL,
	total           INTEGER NOT NULL,
	processed_count INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	current_url     TEXT,
	summary         TEXT,
	error           TEXT,
	started_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS processing_log (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_session_id ON records(session_id);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
CREATE INDEX IF NOT EXISTS idx_records_final_confidence ON records(final_confidence);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_processing_log_session_id ON processing_log(session_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ExtractedRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal fields")
	}
	notesJSON, err := json.Marshal(rec.ExtractionNotes)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal notes")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, session_id, source_url, kind, fields,
			ai_confidence, validation_confidence, final_confidence,
			quality_label, quality_reason, extraction_notes,
			input_tokens, output_tokens, processed_at, processing_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.SessionID, rec.SourceURL, string(rec.Kind), fieldsJSON,
		rec.AIConfidence, rec.ValidationConfidence, rec.FinalConfidence,
		string(rec.QualityLabel), rec.QualityReason, notesJSON,
		rec.TokenUsage.InputTokens, rec.TokenUsage.OutputTokens,
		rec.ProcessedAt, rec.ProcessingMillis,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert record")
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.ExtractedRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, source_url, kind, fields,
			ai_confidence, validation_confidence, final_confidence,
			quality_label, quality_reason, extraction_notes,
			input_tokens, output_tokens, processed_at, processing_ms
		 FROM records WHERE id = $1`,
		id,
	)
	return scanPGRecord(row)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractedRecord, error) {
	query := `SELECT id, session_id, source_url, kind, fields,
		ai_confidence, validation_confidence, final_confidence,
		quality_label, quality_reason, extraction_notes,
		input_tokens, output_tokens, processed_at, processing_ms
	 FROM records WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Kind != "" {
		query += ` AND kind = ` + arg(string(filter.Kind))
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ` + arg(filter.SessionID)
	}
	if filter.MinConfidence > 0 {
		query += ` AND final_confidence >= ` + arg(filter.MinConfidence)
	}
	query += ` ORDER BY processed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ExtractedRecord
	for rows.Next() {
		r, err := scanPGRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) CreateSession(ctx context.Context, kind model.DocumentKind, urls []string) (*model.Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal urls")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, kind, urls, total, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(kind), urlsJSON, len(urls), string(model.SessionPending), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
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

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, urls, total, processed_count, success_count, failure_count,
			status, current_url, summary, error, started_at, completed_at
		 FROM sessions WHERE id = $1`,
		id,
	)

	var sess model.Session
	var urlsJSON []byte
	var currentURL, summary, errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Kind, &urlsJSON, &sess.Total,
		&sess.ProcessedCount, &sess.SuccessCount, &sess.FailureCount,
		&sess.Status, &currentURL, &summary, &errMsg, &sess.StartedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan session")
	}
	if err := json.Unmarshal(urlsJSON, &sess.URLs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal urls")
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

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, urls, total, processed_count, success_count, failure_count,
			status, current_url, summary, error, started_at, completed_at
		 FROM sessions ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var urlsJSON []byte
		var currentURL, summary, errMsg sql.NullString
		var completedAt sql.NullTime
		err := rows.Scan(&sess.ID, &sess.Kind, &urlsJSON, &sess.Total,
			&sess.ProcessedCount, &sess.SuccessCount, &sess.FailureCount,
			&sess.Status, &currentURL, &summary, &errMsg, &sess.StartedAt, &completedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		if err := json.Unmarshal(urlsJSON, &sess.URLs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal urls")
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
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) UpdateSessionProgress(ctx context.Context, id string, processed, succeeded, failed int, currentURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, processed_count = $2, success_count = $3, failure_count = $4, current_url = $5
		 WHERE id = $6`,
		string(model.SessionRunning), processed, succeeded, failed, currentURL, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session progress %s", id)
	}
	return checkTagAffected(tag, "session", id)
}

func (s *PostgresStore) CompleteSession(ctx context.Context, id string, summary string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, summary = $2, current_url = NULL, completed_at = $3 WHERE id = $4`,
		string(model.SessionCompleted), summary, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete session %s", id)
	}
	return checkTagAffected(tag, "session", id)
}

func (s *PostgresStore) FailSession(ctx context.Context, id string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.SessionFailed), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail session %s", id)
	}
	return checkTagAffected(tag, "session", id)
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry model.ProcessingLogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processing_log (session_id, url, stage, status, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.SessionID, entry.URL, string(entry.Stage), string(entry.Status), entry.Message, createdAt,
	)
	return eris.Wrap(err, "postgres: append log")
}

func (s *PostgresStore) ListLogs(ctx context.Context, sessionID string) ([]model.ProcessingLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, url, stage, status, message, created_at
		 FROM processing_log WHERE session_id = $1 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var entries []model.ProcessingLogEntry
	for rows.Next() {
		var e model.ProcessingLogEntry
		var message sql.NullString
		if err := rows.Scan(&e.SessionID, &e.URL, &e.Stage, &e.Status, &message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log entry")
		}
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list logs iterate")
}

func scanPGRecord(row pgx.Row) (*model.ExtractedRecord, error) {
	var r model.ExtractedRecord
	var sessionID, qualityReason sql.NullString
	var fieldsJSON, notesJSON []byte

	err := row.Scan(&r.ID, &sessionID, &r.SourceURL, &r.Kind, &fieldsJSON,
		&r.AIConfidence, &r.ValidationConfidence, &r.FinalConfidence,
		&r.QualityLabel, &qualityReason, &notesJSON,
		&r.TokenUsage.InputTokens, &r.TokenUsage.OutputTokens,
		&r.ProcessedAt, &r.ProcessingMillis)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("record not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan record")
	}

	r.SessionID = sessionID.String
	r.QualityReason = qualityReason.String
	if err := json.Unmarshal(fieldsJSON, &r.Fields); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fields")
	}
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &r.ExtractionNotes); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal notes")
		}
	}
	return &r, nil
}

func checkTagAffected(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
