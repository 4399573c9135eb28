// Package pipeline drives one document through fetch, quality gating,
// extraction, and storage, and runs batches of URLs as tracked sessions.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hirelens/hirelens/internal/config"
	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/quality"
	"github.com/hirelens/hirelens/internal/scrape"
	"github.com/hirelens/hirelens/internal/store"
)

// Extractor is the two-pass extraction protocol the pipeline invokes for
// processable documents.
type Extractor interface {
	Extract(ctx context.Context, doc *model.RawDocument) (*model.ExtractedRecord, error)
}

// Orchestrator processes URLs one state at a time:
//
//	fetching -> quality_check -> extracting -> storing -> done
//	                          \> skip_ai    -> storing -> done
//
// A failure in fetch or extract fails that URL only; the batch continues.
type Orchestrator struct {
	fetcher   scrape.Fetcher
	extractor Extractor
	store     store.Store
	cfg       config.PipelineConfig
	limiter   *rate.Limiter
}

// NewOrchestrator wires the pipeline. The rate limiter paces outbound fetches
// across all URLs of a batch, including concurrent ones.
func NewOrchestrator(fetcher scrape.Fetcher, extractor Extractor, st store.Store, cfg config.PipelineConfig) *Orchestrator {
	if cfg.PoorQualityPenalty <= 0 {
		cfg.PoorQualityPenalty = 0.5
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestDelaySecs > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(cfg.RequestDelaySecs*float64(time.Second))), 1)
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		store:     st,
		cfg:       cfg,
		limiter:   limiter,
	}
}

// ProcessURL runs the full state machine for one URL and returns the stored
// record. The returned error means the URL failed; a record with zero
// confidence (unusable content) is a success, not an error.
func (o *Orchestrator) ProcessURL(ctx context.Context, sessionID, url string, kind model.DocumentKind) (*model.ExtractedRecord, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: rate limit wait")
	}

	doc, err := o.fetcher.Fetch(ctx, url, kind)
	if err != nil {
		o.log(ctx, sessionID, url, model.StageFetch, model.LogError, err.Error())
		return nil, eris.Wrap(err, "pipeline: fetch")
	}
	o.log(ctx, sessionID, url, model.StageFetch, model.LogSuccess, fmt.Sprintf("fetched %d chars via %s", len(doc.RawText), o.fetcher.Name()))

	// A 404 from the scraping service is decided here, without spending a
	// quality scan or an LLM call on the body.
	if doc.HTTPStatus == 404 {
		o.log(ctx, sessionID, url, model.StageQuality, model.LogWarning, "http 404 reported by scraper")
		return o.storeUnprocessable(ctx, sessionID, doc, model.QualityAssessment{
			Label:     model.QualityError404,
			Rationale: "page returned HTTP 404",
		})
	}

	assessment := quality.ForKind(kind).AssessDocument(doc)
	if !assessment.Label.IsProcessable() {
		o.log(ctx, sessionID, url, model.StageQuality, model.LogWarning,
			fmt.Sprintf("label=%s: %s", assessment.Label, assessment.Rationale))
		return o.storeUnprocessable(ctx, sessionID, doc, assessment)
	}
	o.log(ctx, sessionID, url, model.StageQuality, model.LogSuccess,
		fmt.Sprintf("label=%s score=%.2f", assessment.Label, assessment.Score))

	rec, err := o.extractor.Extract(ctx, doc)
	if err != nil {
		o.log(ctx, sessionID, url, model.StageExtract, model.LogError, err.Error())
		return nil, eris.Wrap(err, "pipeline: extract")
	}
	rec.SessionID = sessionID
	rec.QualityLabel = assessment.Label
	rec.QualityReason = assessment.Rationale

	// Poor content still gets extracted, but its confidence is discounted
	// and the record says so.
	if assessment.Label == model.QualityPoor {
		rec.FinalConfidence *= o.cfg.PoorQualityPenalty
		rec.ExtractionNotes = append(rec.ExtractionNotes,
			fmt.Sprintf("poor quality content - confidence reduced: %s", assessment.Rationale))
	}
	o.log(ctx, sessionID, url, model.StageExtract, model.LogSuccess,
		fmt.Sprintf("final_confidence=%.2f", rec.FinalConfidence))

	o.saveRecord(ctx, sessionID, rec)
	o.log(ctx, sessionID, url, model.StageDone, model.LogSuccess, "")
	return rec, nil
}

// storeUnprocessable persists a zero-confidence record for content that was
// never sent to the model.
func (o *Orchestrator) storeUnprocessable(ctx context.Context, sessionID string, doc *model.RawDocument, assessment model.QualityAssessment) (*model.ExtractedRecord, error) {
	rec := &model.ExtractedRecord{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		SourceURL:       doc.SourceURL,
		Kind:            doc.Kind,
		Fields:          map[string]any{},
		QualityLabel:    assessment.Label,
		QualityReason:   assessment.Rationale,
		ExtractionNotes: []string{"content not processable - extraction skipped"},
		ProcessedAt:     time.Now().UTC(),
	}
	o.saveRecord(ctx, sessionID, rec)
	o.log(ctx, sessionID, doc.SourceURL, model.StageDone, model.LogWarning, "extraction skipped")
	return rec, nil
}

// saveRecord persists the record. A storage failure is logged and does not
// fail the URL: the extraction already happened and was paid for.
func (o *Orchestrator) saveRecord(ctx context.Context, sessionID string, rec *model.ExtractedRecord) {
	if _, err := o.store.SaveRecord(ctx, rec); err != nil {
		zap.L().Error("record save failed",
			zap.String("url", rec.SourceURL),
			zap.Error(err),
		)
		o.log(ctx, sessionID, rec.SourceURL, model.StageStore, model.LogWarning, err.Error())
		return
	}
	o.log(ctx, sessionID, rec.SourceURL, model.StageStore, model.LogSuccess, rec.ID)
}

func (o *Orchestrator) log(ctx context.Context, sessionID, url string, stage model.Stage, status model.LogStatus, message string) {
	if sessionID == "" {
		return
	}
	err := o.store.AppendLog(ctx, model.ProcessingLogEntry{
		SessionID: sessionID,
		URL:       url,
		Stage:     stage,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		zap.L().Warn("processing log append failed", zap.Error(err))
	}
}

// Job is a handle to a running batch. Callers poll the session via the store;
// Done closes when the batch goroutine exits.
type Job struct {
	SessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Done returns a channel closed when the batch finishes or fails.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the batch after the in-flight URL.
func (j *Job) Cancel() { j.cancel() }

// RunBatch creates a session for the URLs and processes them in the
// background. The returned Job is a fire-and-track handle: RunBatch does not
// wait for completion.
func (o *Orchestrator) RunBatch(ctx context.Context, kind model.DocumentKind, urls []string) (*Job, error) {
	if len(urls) == 0 {
		return nil, eris.New("pipeline: batch needs at least one url")
	}

	sess, err := o.store.CreateSession(ctx, kind, urls)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create session")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &Job{SessionID: sess.ID, cancel: cancel, done: make(chan struct{})}

	go o.runBatch(runCtx, sess, job)

	return job, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, sess *model.Session, job *Job) {
	defer close(job.done)
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			zap.L().Error("batch panicked", zap.String("session_id", sess.ID), zap.Any("panic", r))
			if err := o.store.FailSession(context.WithoutCancel(ctx), sess.ID, msg); err != nil {
				zap.L().Error("session fail update failed", zap.Error(err))
			}
		}
	}()

	zap.L().Info("batch started",
		zap.String("session_id", sess.ID),
		zap.String("kind", string(sess.Kind)),
		zap.Int("total", sess.Total),
	)

	var succeeded, failed int
	if o.cfg.MaxConcurrent > 1 {
		succeeded, failed = o.runConcurrent(ctx, sess)
	} else {
		succeeded, failed = o.runSequential(ctx, sess)
	}

	if ctx.Err() != nil {
		if err := o.store.FailSession(context.WithoutCancel(ctx), sess.ID, "batch cancelled"); err != nil {
			zap.L().Error("session fail update failed", zap.Error(err))
		}
		return
	}

	summary := fmt.Sprintf("%d urls, %d succeeded, %d failed", sess.Total, succeeded, failed)
	if err := o.store.CompleteSession(ctx, sess.ID, summary); err != nil {
		zap.L().Error("session complete update failed", zap.Error(err))
	}
	zap.L().Info("batch complete", zap.String("session_id", sess.ID), zap.String("summary", summary))
}

// runSequential processes URLs in order, one at a time. Per-URL failures are
// counted and the batch moves on.
func (o *Orchestrator) runSequential(ctx context.Context, sess *model.Session) (succeeded, failed int) {
	for i, url := range sess.URLs {
		if ctx.Err() != nil {
			return succeeded, failed
		}
		if err := o.store.UpdateSessionProgress(ctx, sess.ID, i, succeeded, failed, url); err != nil {
			zap.L().Warn("session progress update failed", zap.Error(err))
		}

		if _, err := o.ProcessURL(ctx, sess.ID, url, sess.Kind); err != nil {
			failed++
			zap.L().Warn("url failed",
				zap.String("session_id", sess.ID),
				zap.String("url", url),
				zap.Error(err),
			)
		} else {
			succeeded++
		}
	}
	if err := o.store.UpdateSessionProgress(ctx, sess.ID, len(sess.URLs), succeeded, failed, ""); err != nil {
		zap.L().Warn("session progress update failed", zap.Error(err))
	}
	return succeeded, failed
}

// runConcurrent processes URLs with bounded parallelism. The shared rate
// limiter still paces outbound fetches.
func (o *Orchestrator) runConcurrent(ctx context.Context, sess *model.Session) (succeeded, failed int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrent)

	results := make(chan bool, len(sess.URLs))
	for _, url := range sess.URLs {
		url := url
		g.Go(func() error {
			_, err := o.ProcessURL(gctx, sess.ID, url, sess.Kind)
			results <- err == nil
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	processed := 0
	for ok := range results {
		processed++
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	if err := o.store.UpdateSessionProgress(ctx, sess.ID, processed, succeeded, failed, ""); err != nil {
		zap.L().Warn("session progress update failed", zap.Error(err))
	}
	return succeeded, failed
}
