package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/config"
	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/store"
)

// stubFetcher serves one canned document for any URL.
type stubFetcher struct {
	doc *model.RawDocument
}

func (s *stubFetcher) Fetch(_ context.Context, url string, kind model.DocumentKind) (*model.RawDocument, error) {
	doc := *s.doc
	doc.SourceURL = url
	doc.Kind = kind
	return &doc, nil
}

func (s *stubFetcher) Name() string { return "stub" }

// stubExtractor returns a fixed-confidence record without model calls.
type stubExtractor struct{}

func (s *stubExtractor) Extract(_ context.Context, doc *model.RawDocument) (*model.ExtractedRecord, error) {
	return &model.ExtractedRecord{
		ID:              uuid.NewString(),
		SourceURL:       doc.SourceURL,
		Kind:            doc.Kind,
		Fields:          map[string]any{"job_title": "Engineer"},
		AIConfidence:    0.7,
		FinalConfidence: 0.62,
		ProcessedAt:     time.Now().UTC(),
	}, nil
}

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	doc := &model.RawDocument{
		RawText: strings.Repeat(
			"Responsibilities and requirements: qualifications in Go. Benefits and salary offered. ", 8),
		HTTPStatus: 200,
	}
	orch := pipeline.NewOrchestrator(&stubFetcher{doc: doc}, &stubExtractor{}, st, config.PipelineConfig{
		PoorQualityPenalty: 0.5,
	})
	return newRouter(orch, st), st
}

func TestServe_Health(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_ProcessURL(t *testing.T) {
	handler, _ := newTestServer(t)

	body := strings.NewReader(`{"url":"https://boards.greenhouse.io/acme/jobs/1","kind":"job"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/process", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var got model.ExtractedRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/1", got.SourceURL)
	assert.InDelta(t, 0.62, got.FinalConfidence, 1e-9)
	assert.Equal(t, model.QualityGood, got.QualityLabel)
}

func TestServe_ProcessURLValidation(t *testing.T) {
	handler, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing url", `{"kind":"job"}`},
		{"bad kind", `{"url":"https://a.example/1","kind":"resume"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServe_SessionLifecycle(t *testing.T) {
	handler, st := newTestServer(t)

	body := strings.NewReader(`{"urls":["https://a.example/1","https://a.example/2"],"kind":"job"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", body))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		SessionID string `json:"session_id"`
		Total     int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.SessionID)
	assert.Equal(t, 2, accepted.Total)

	// Wait for the background batch to finish.
	deadline := time.Now().Add(5 * time.Second)
	for {
		sess, err := st.GetSession(context.Background(), accepted.SessionID)
		require.NoError(t, err)
		if sess.Status.Terminal() {
			assert.Equal(t, model.SessionCompleted, sess.Status)
			assert.Equal(t, 2, sess.SuccessCount)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+accepted.SessionID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+accepted.SessionID+"/logs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var logs []model.ProcessingLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.NotEmpty(t, logs)
}

func TestServe_SessionNotFound(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_RecordsFilter(t *testing.T) {
	handler, st := newTestServer(t)

	_, err := st.SaveRecord(context.Background(), &model.ExtractedRecord{
		SourceURL:       "https://a.example/1",
		Kind:            model.KindJob,
		Fields:          map[string]any{"job_title": "Engineer"},
		FinalConfidence: 0.8,
		QualityLabel:    model.QualityGood,
		ProcessedAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records?kind=job&min_confidence=0.5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []model.ExtractedRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records?min_confidence=0.9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records?min_confidence=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
