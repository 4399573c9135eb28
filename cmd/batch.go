package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/pipeline"
	"github.com/hirelens/hirelens/internal/store"
)

var (
	batchFile string
	batchKind string
)

var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Process a batch of URLs as a tracked session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := parseKind(batchKind)
		if err != nil {
			return err
		}

		urls := args
		if batchFile != "" {
			fileURLs, err := readURLFile(batchFile)
			if err != nil {
				return err
			}
			urls = append(urls, fileURLs...)
		}
		if len(urls) == 0 {
			return eris.New("no urls given (pass urls as args or --file)")
		}

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := executeBatch(ctx, orch, st, kind, urls)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

// executeBatch starts a session and blocks until the worker goroutine exits.
// The CLI owns the store, so it must not return (and close the store) while
// the batch is still writing through it; asynchronous submission is the
// serve command's mode.
func executeBatch(ctx context.Context, orch *pipeline.Orchestrator, st store.Store, kind model.DocumentKind, urls []string) (*model.Session, error) {
	job, err := orch.RunBatch(ctx, kind, urls)
	if err != nil {
		return nil, eris.Wrap(err, "start batch")
	}

	zap.L().Info("batch session started",
		zap.String("session_id", job.SessionID),
		zap.Int("urls", len(urls)),
	)

	select {
	case <-ctx.Done():
		job.Cancel()
		<-job.Done()
	case <-job.Done():
	}

	// The interrupt case arrives here with a cancelled ctx; the final read
	// still has to happen.
	sess, err := st.GetSession(context.WithoutCancel(ctx), job.SessionID)
	if err != nil {
		return nil, eris.Wrap(err, "get session")
	}
	return sess, nil
}

// readURLFile loads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open url file %s", path)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read url file %s", path)
	}
	return urls, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one URL per line")
	batchCmd.Flags().StringVar(&batchKind, "kind", "job", "document kind: job or form")
	rootCmd.AddCommand(batchCmd)
}
