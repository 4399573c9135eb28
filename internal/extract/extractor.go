// Package extract runs the two-pass model protocol for one document:
// extract structured fields, validate the extraction, fuse confidence.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/confidence"
	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/prompt"
	"github.com/hirelens/hirelens/pkg/anthropic"
)

// extractionTemperature keeps the model near-deterministic for structured
// output.
const extractionTemperature = 0.1

// mismatchNoteThreshold is the AI-vs-objective gap that earns a note on the
// record. Smaller than the fusion penalty threshold: the note fires on gaps
// worth flagging to a reviewer, the penalty only on gaps that indicate an
// unreliable self-assessment.
const mismatchNoteThreshold = 0.3

// lowConfidenceThreshold marks records that need manual review.
const lowConfidenceThreshold = 0.3

// ExtractionError reports that the primary model call produced unparseable
// output. Per-URL fatal; the pipeline never retries it.
type ExtractionError struct {
	URL         string
	Reason      string // "invalid_json"
	RawResponse string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: %s for %s", e.Reason, e.URL)
}

// Config holds the model parameters for extraction calls.
type Config struct {
	Model            string
	MaxTokens        int64
	ExtractionBudget int
	ValidationBudget int
}

// Extractor orchestrates one document's extraction. It makes exactly two
// outbound model calls (the second best-effort) and mutates no shared state.
type Extractor struct {
	client anthropic.Client
	cfg    Config

	jobPrompts  *prompt.Builder
	formPrompts *prompt.Builder
}

// NewExtractor creates an Extractor. The client is expected to carry its own
// retry policy; the extraction protocol itself never retries.
func NewExtractor(client anthropic.Client, cfg Config) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Extractor{
		client:      client,
		cfg:         cfg,
		jobPrompts:  prompt.NewBuilder(model.KindJob, cfg.ExtractionBudget, cfg.ValidationBudget),
		formPrompts: prompt.NewBuilder(model.KindForm, cfg.ExtractionBudget, cfg.ValidationBudget),
	}
}

func (e *Extractor) builderFor(kind model.DocumentKind) *prompt.Builder {
	if kind == model.KindForm {
		return e.formPrompts
	}
	return e.jobPrompts
}

// Extract runs the two-pass protocol against doc and returns the assembled
// record. The primary call failing (transport or unparseable JSON) is fatal
// for this document; the validation call failing is recovered with fixed
// default scores.
func (e *Extractor) Extract(ctx context.Context, doc *model.RawDocument) (*model.ExtractedRecord, error) {
	start := time.Now()
	builder := e.builderFor(doc.Kind)

	var usage model.TokenUsage

	// Pass 1: extraction. The system prompt is constant per kind, so it is
	// sent with a cache breakpoint and stays warm across a batch.
	system, user := builder.Extraction(doc.SourceURL, doc.RawText)
	temp := extractionTemperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      anthropic.CachedSystem(system),
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: extraction call")
	}
	usage.Add(model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	})
	resp.Usage.LogCost(e.cfg.Model, "extraction")

	raw := resp.Text()
	var fields map[string]any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &fields); err != nil {
		return nil, &ExtractionError{
			URL:         doc.SourceURL,
			Reason:      "invalid_json",
			RawResponse: raw,
		}
	}

	ai, _ := toFloat64(fields["confidence_score"])

	// Pass 2: validation, best-effort. Any failure here substitutes the
	// fixed defaults and the pipeline moves on.
	validation := e.validate(ctx, builder, doc, fields, &usage)

	fused := confidence.Fuse(doc.Kind, ai, fields, doc.RawText, validation)

	notes := e.buildNotes(ai, fused, validation)

	record := &model.ExtractedRecord{
		ID:                   uuid.NewString(),
		SourceURL:            doc.SourceURL,
		Kind:                 doc.Kind,
		Fields:               fields,
		AIConfidence:         fused.AIConfidence,
		ValidationConfidence: fused.ValidationConfidence,
		FinalConfidence:      fused.FinalConfidence,
		ExtractionNotes:      notes,
		TokenUsage:           usage,
		ProcessedAt:          time.Now().UTC(),
		ProcessingMillis:     time.Since(start).Milliseconds(),
	}

	zap.L().Info("extraction complete",
		zap.String("url", doc.SourceURL),
		zap.String("kind", string(doc.Kind)),
		zap.Float64("ai_confidence", fused.AIConfidence),
		zap.Float64("validation_confidence", fused.ValidationConfidence),
		zap.Float64("final_confidence", fused.FinalConfidence),
		zap.Int64("elapsed_ms", record.ProcessingMillis),
	)

	return record, nil
}

// validate runs the second model pass. Never returns an error: a failed or
// unparseable validation yields the fixed defaults.
func (e *Extractor) validate(ctx context.Context, builder *prompt.Builder, doc *model.RawDocument, fields map[string]any, usage *model.TokenUsage) model.ValidationAssessment {
	extractedJSON, err := json.Marshal(fields)
	if err != nil {
		return model.DefaultValidation()
	}

	system, user := builder.Validation(doc.RawText, string(extractedJSON))
	temp := extractionTemperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: system}},
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("validation call failed, using default scores",
			zap.String("url", doc.SourceURL),
			zap.Error(err),
		)
		return model.DefaultValidation()
	}
	usage.Add(model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	})
	resp.Usage.LogCost(e.cfg.Model, "validation")

	var assessment model.ValidationAssessment
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &assessment); err != nil {
		zap.L().Warn("validation response unparseable, using default scores",
			zap.String("url", doc.SourceURL),
			zap.Error(err),
		)
		return model.DefaultValidation()
	}

	return assessment
}

// buildNotes produces the human-readable annotations stored on the record.
func (e *Extractor) buildNotes(ai float64, fused confidence.Result, validation model.ValidationAssessment) []string {
	var notes []string

	if validation.Defaulted {
		notes = append(notes, "validation unavailable - default scores applied")
	}

	objective := fused.Breakdown["field_completeness"]
	if math.Abs(ai-objective) > mismatchNoteThreshold {
		notes = append(notes, fmt.Sprintf("confidence mismatch detected: AI=%.2f, validation=%.2f", ai, objective))
	}

	if fused.FinalConfidence < lowConfidenceThreshold {
		notes = append(notes, "low confidence extraction - manual review recommended")
	}

	for _, issue := range validation.Issues {
		if issue.Severity == "high" {
			notes = append(notes, fmt.Sprintf("validation issue (%s): %s", issue.Kind, issue.Description))
		}
	}

	return notes
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// toFloat64 attempts to convert an any value to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
