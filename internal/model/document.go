package model

import "time"

// DocumentKind distinguishes the two supported source types.
type DocumentKind string

const (
	KindJob  DocumentKind = "job"
	KindForm DocumentKind = "form"
)

// QualityLabel classifies raw content before any AI processing.
type QualityLabel string

const (
	QualityGood     QualityLabel = "good"
	QualityModerate QualityLabel = "moderate"
	QualityPoor     QualityLabel = "poor"
	QualityInvalid  QualityLabel = "invalid"
	QualityError404 QualityLabel = "error_404"
	QualityUnknown  QualityLabel = "unknown"
)

// IsProcessable reports whether content with this label should be sent to
// the LLM at all. Invalid and 404 content is never worth an API call.
func (l QualityLabel) IsProcessable() bool {
	return l == QualityGood || l == QualityModerate || l == QualityPoor
}

// RawDocument is the unstructured result of one fetch attempt for one URL.
// It is created once per fetch and never mutated afterwards.
type RawDocument struct {
	SourceURL   string         `json:"source_url"`
	Kind        DocumentKind   `json:"kind"`
	FetchedAt   time.Time      `json:"fetched_at"`
	Title       string         `json:"title,omitempty"`
	RawText     string         `json:"raw_text"`
	RawMarkup   string         `json:"raw_markup,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ATSPlatform string         `json:"ats_platform,omitempty"`
	HTTPStatus  int            `json:"http_status,omitempty"`
}

// QualityAssessment is the outcome of the pre-AI content quality check.
// Derived purely from RawDocument.RawText; recomputed, never stored mutated.
type QualityAssessment struct {
	Label             QualityLabel `json:"label"`
	Score             float64      `json:"score"`
	MatchedIndicators []string     `json:"matched_indicators,omitempty"`
	Rationale         string       `json:"rationale"`
	IndicatorScore    float64      `json:"indicator_score"`
	LengthScore       float64      `json:"length_score"`
	StructureScore    float64      `json:"structure_score"`
}
