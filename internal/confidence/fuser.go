// Package confidence fuses the model's self-reported confidence with an
// objective, rule-based field-completeness score into one final number.
// AI self-assessment is optimistic and uncalibrated; the point-based field
// score anchors the result, and large disagreement between the two is itself
// treated as a signal of unreliability.
package confidence

import (
	"math"
	"strings"

	"github.com/hirelens/hirelens/internal/model"
)

// Fusion weights and thresholds.
const (
	aiWeight    = 0.4
	fieldWeight = 0.6

	// mismatchThreshold triggers the disagreement penalty.
	mismatchThreshold = 0.5
	mismatchPenalty   = 0.8

	// Content-length multipliers on the raw point sum.
	shortContentLen        = 500
	shortContentMultiplier = 0.5
	longContentLen         = 10000
	longContentMultiplier  = 1.1
)

// Per-question bonus applied to form extractions, capped.
const (
	questionBonus    = 0.01
	questionBonusCap = 0.05
)

// Result carries the fused confidence plus the inputs and sub-scores it was
// derived from. Stored with the record and never recomputed.
type Result struct {
	AIConfidence         float64            `json:"ai_confidence"`
	ValidationConfidence float64            `json:"validation_confidence"`
	FinalConfidence      float64            `json:"final_confidence"`
	Breakdown            map[string]float64 `json:"breakdown"`
}

// Fuse combines the AI self-reported confidence with the objective field
// score computed from extracted. The formula is fixed:
//
//	validation_confidence = 0.5*completeness + 0.5*accuracy
//	final = 0.4*ai + 0.6*field_completeness
//	|ai - field_completeness| > 0.5  =>  final *= 0.8
//
// validation_confidence is reported for transparency but the fusion anchors
// on the field score. Forms additionally earn a small per-question bonus.
// The result is clamped to [0, 1]. Deterministic and side-effect free.
func Fuse(kind model.DocumentKind, ai float64, extracted map[string]any, rawText string, validation model.ValidationAssessment) Result {
	validationConfidence := 0.5*validation.CompletenessScore + 0.5*validation.AccuracyScore

	var points, maxPoints float64
	if kind == model.KindForm {
		points, maxPoints = formFieldPoints(extracted)
	} else {
		points, maxPoints = jobFieldPoints(extracted)
	}

	lengthMultiplier := 1.0
	switch {
	case len(rawText) < shortContentLen:
		lengthMultiplier = shortContentMultiplier
	case len(rawText) > longContentLen:
		lengthMultiplier = longContentMultiplier
	}
	points *= lengthMultiplier

	fieldCompleteness := math.Min(points/maxPoints, 1.0)

	final := aiWeight*ai + fieldWeight*fieldCompleteness

	penaltyApplied := 0.0
	if math.Abs(ai-fieldCompleteness) > mismatchThreshold {
		final *= mismatchPenalty
		penaltyApplied = 1.0
	}

	bonus := 0.0
	if kind == model.KindForm {
		if n := listLen(extracted, "questions"); n > 0 {
			bonus = math.Min(float64(n)*questionBonus, questionBonusCap)
			final += bonus
		}
	}

	final = math.Max(0.0, math.Min(1.0, final))

	return Result{
		AIConfidence:         ai,
		ValidationConfidence: validationConfidence,
		FinalConfidence:      final,
		Breakdown: map[string]float64{
			"field_completeness": fieldCompleteness,
			"raw_points":         points,
			"max_points":         maxPoints,
			"length_multiplier":  lengthMultiplier,
			"mismatch_penalty":   penaltyApplied,
			"question_bonus":     bonus,
		},
	}
}

// jobFieldPoints scores a job extraction against a fixed 105-point budget.
func jobFieldPoints(extracted map[string]any) (points, maxPoints float64) {
	maxPoints = 105.0

	// Core fields (40 points).
	if hasString(extracted, "job_title") {
		points += 15
	}
	if hasString(extracted, "company_name") {
		points += 15
	}
	if desc := stringField(extracted, "job_description"); strings.TrimSpace(desc) != "" && len(desc) > 50 {
		points += 10
	}

	// Responsibilities and requirements (25 points).
	resp := listLen(extracted, "responsibilities")
	reqs := listLen(extracted, "requirements")
	if resp > 0 {
		points += 10
	}
	if reqs > 0 {
		points += 10
	}
	if resp+reqs > 5 {
		points += 5
	}

	// Skills (15 points).
	reqSkills := listLen(extracted, "required_skills")
	prefSkills := listLen(extracted, "preferred_skills")
	if reqSkills > 0 {
		points += 8
	}
	if prefSkills > 0 {
		points += 4
	}
	if reqSkills+prefSkills > 3 {
		points += 3
	}

	// Location and work arrangement (10 points).
	if hasString(extracted, "location") {
		points += 5
	}
	if hasString(extracted, "remote_policy") {
		points += 5
	}

	// Compensation (10 points).
	if hasString(extracted, "salary_text") || hasNumber(extracted, "salary_min") || hasNumber(extracted, "salary_max") {
		points += 5
	}
	if listLen(extracted, "benefits") > 0 {
		points += 5
	}

	// Application information (5 points).
	if listLen(extracted, "application_questions") > 0 {
		points += 3
	}
	if hasString(extracted, "application_url") {
		points += 2
	}

	return points, maxPoints
}

// formFieldPoints scores a form extraction against an 80-point budget shaped
// like the job budget: identity fields, the question list, and structural
// detail.
func formFieldPoints(extracted map[string]any) (points, maxPoints float64) {
	maxPoints = 80.0

	if hasString(extracted, "title") {
		points += 15
	}
	if hasString(extracted, "description") {
		points += 10
	}
	if hasString(extracted, "form_id") {
		points += 5
	}
	if hasString(extracted, "owner_email") {
		points += 5
	}

	questions := listField(extracted, "questions")
	if len(questions) > 0 {
		points += 25
	}
	if len(questions) > 5 {
		points += 5
	}

	// Structural detail: any choice question with captured options.
	for _, q := range questions {
		qm, ok := q.(map[string]any)
		if ok && listLen(qm, "options") > 0 {
			points += 10
			break
		}
	}

	if listLen(extracted, "sections") > 0 {
		points += 5
	}

	return points, maxPoints
}

// Field accessors over the raw decoded JSON mapping. JSON numbers decode as
// float64; absent or null values count as missing.

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func hasString(m map[string]any, key string) bool {
	return strings.TrimSpace(stringField(m, key)) != ""
}

func hasNumber(m map[string]any, key string) bool {
	n, ok := m[key].(float64)
	return ok && n != 0
}

func listField(m map[string]any, key string) []any {
	l, _ := m[key].([]any)
	return l
}

func listLen(m map[string]any, key string) int {
	return len(listField(m, key))
}
