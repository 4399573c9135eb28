package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/config"
	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/store"
)

func TestReadURLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := `# production batch
https://boards.greenhouse.io/acme/jobs/1

https://jobs.lever.co/acme/2
  https://a.example/3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://boards.greenhouse.io/acme/jobs/1",
		"https://jobs.lever.co/acme/2",
		"https://a.example/3",
	}, urls)
}

func TestReadURLFileMissing(t *testing.T) {
	_, err := readURLFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestExecuteBatchBlocksUntilTerminal(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch_test.db"))
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

	urls := []string{"https://a.example/1", "https://a.example/2"}
	sess, err := executeBatch(context.Background(), orch, st, model.KindJob, urls)
	require.NoError(t, err)

	// When executeBatch returns, the store must no longer be in use by the
	// batch worker: the session is terminal and every record is persisted.
	assert.True(t, sess.Status.Terminal())
	assert.Equal(t, model.SessionCompleted, sess.Status)
	assert.Equal(t, 2, sess.SuccessCount)

	records, err := st.ListRecords(context.Background(), store.RecordFilter{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParseKind(t *testing.T) {
	kind, err := parseKind("job")
	require.NoError(t, err)
	assert.Equal(t, model.KindJob, kind)

	kind, err = parseKind("form")
	require.NoError(t, err)
	assert.Equal(t, model.KindForm, kind)

	_, err = parseKind("resume")
	assert.Error(t, err)
}
