// Package quality scores raw scraped content before any AI processing.
// The assessment is a pure function over text: it gates expensive LLM calls
// so unusable pages (404s, access-denied shells, near-empty bodies) are never
// paid for.
package quality

import (
	"fmt"
	"strings"

	"github.com/hirelens/hirelens/internal/model"
)

// minContentLength is the smallest trimmed body we consider assessable.
const minContentLength = 50

// Sub-score weights for the overall quality score.
const (
	indicatorWeight = 0.4
	lengthWeight    = 0.3
	structureWeight = 0.3
)

// lengthNorm normalizes the length sub-score: content at or above this many
// characters earns full length credit.
const lengthNorm = 1000

// ErrorPattern maps an error-page phrase to the quality label it implies.
// Patterns are scanned in declaration order; the first match wins, so the
// reported rationale is stable for content matching multiple patterns.
type ErrorPattern struct {
	Phrase string
	Label  model.QualityLabel
}

// Policy is a named quality-assessment variant. Job postings and web forms
// use different vocabularies and different labeling rules; the two are kept
// as separate policies rather than merged.
type Policy struct {
	Name            string
	Indicators      []string
	StructureTokens []string
	ErrorPatterns   []ErrorPattern

	// labelFor maps the computed sub-scores to a final label + rationale.
	labelFor func(overall float64, matched int, contentLen int) (model.QualityLabel, string)
}

// JobPolicy returns the quality policy for job-posting content. Jobs label
// by indicator count: pages with fewer than three recognizable job-posting
// phrases are poor regardless of the numeric score.
func JobPolicy() Policy {
	return Policy{
		Name: "job",
		Indicators: []string{
			"responsibilities", "requirements", "qualifications", "experience",
			"skills", "job description", "role description", "position description",
			"what you will do", "what we offer", "benefits", "salary",
			"apply now", "submit application",
		},
		// Job postings are prose; no structural markup vocabulary applies.
		StructureTokens: nil,
		ErrorPatterns:   commonErrorPatterns(),
		labelFor: func(overall float64, matched int, contentLen int) (model.QualityLabel, string) {
			switch {
			case matched == 0:
				return model.QualityPoor, "no job posting indicators found"
			case matched < 3:
				return model.QualityPoor, fmt.Sprintf("only %d job indicators found", matched)
			case contentLen < 500:
				return model.QualityPoor, "content too short for typical job posting"
			default:
				return model.QualityGood, fmt.Sprintf("found %d job indicators, good content length", matched)
			}
		},
	}
}

// FormPolicy returns the quality policy for web-form content. Forms label by
// the weighted overall score with a "moderate" middle band.
func FormPolicy() Policy {
	return Policy{
		Name: "form",
		Indicators: []string{
			"form", "question", "required", "optional", "submit",
			"response", "answer", "multiple choice", "checkbox",
			"dropdown", "text field", "email", "name", "phone",
			"google forms", "powered by google",
		},
		StructureTokens: []string{
			"input", "select", "textarea", "radio", "checkbox",
			"button", "label", "fieldset", "legend",
		},
		ErrorPatterns: append(commonErrorPatterns(),
			ErrorPattern{Phrase: "form not found", Label: model.QualityError404},
			ErrorPattern{Phrase: "form has been deleted", Label: model.QualityError404},
		),
		labelFor: func(overall float64, matched int, contentLen int) (model.QualityLabel, string) {
			var label model.QualityLabel
			switch {
			case overall >= 0.7:
				label = model.QualityGood
			case overall >= 0.4:
				label = model.QualityModerate
			default:
				label = model.QualityPoor
			}
			return label, fmt.Sprintf("form content quality assessment: %s", label)
		},
	}
}

// commonErrorPatterns returns the error-page phrases shared by both policies,
// in scan order.
func commonErrorPatterns() []ErrorPattern {
	return []ErrorPattern{
		{Phrase: "404", Label: model.QualityError404},
		{Phrase: "page not found", Label: model.QualityError404},
		{Phrase: "not found", Label: model.QualityError404},
		{Phrase: "error occurred", Label: model.QualityError404},
		{Phrase: "access denied", Label: model.QualityInvalid},
		{Phrase: "permission denied", Label: model.QualityInvalid},
		{Phrase: "unauthorized", Label: model.QualityInvalid},
		{Phrase: "forbidden", Label: model.QualityInvalid},
		{Phrase: "temporarily unavailable", Label: model.QualityInvalid},
		{Phrase: "maintenance mode", Label: model.QualityInvalid},
	}
}

// Assessor evaluates raw content under a fixed policy. Deterministic and
// side-effect free.
type Assessor struct {
	policy Policy
}

// NewAssessor creates an Assessor for the given policy.
func NewAssessor(policy Policy) *Assessor {
	return &Assessor{policy: policy}
}

// Assess scores raw text. See model.QualityAssessment for the shape.
func (a *Assessor) Assess(raw string) model.QualityAssessment {
	lower := strings.ToLower(raw)

	// Error-page scan runs before the length check: a short "404 Page Not
	// Found" body is a 404, not merely thin content. First match in
	// declaration order wins.
	for _, ep := range a.policy.ErrorPatterns {
		if strings.Contains(lower, ep.Phrase) {
			return model.QualityAssessment{
				Label:             ep.Label,
				Score:             0.0,
				MatchedIndicators: []string{ep.Phrase},
				Rationale:         fmt.Sprintf("detected error pattern: %s", ep.Phrase),
			}
		}
	}

	if len(strings.TrimSpace(raw)) < minContentLength {
		return model.QualityAssessment{
			Label:     model.QualityInvalid,
			Score:     0.0,
			Rationale: "content too short",
		}
	}

	var matched []string
	for _, ind := range a.policy.Indicators {
		if strings.Contains(lower, ind) {
			matched = append(matched, ind)
		}
	}

	indicatorScore := 0.0
	if len(a.policy.Indicators) > 0 {
		indicatorScore = float64(len(matched)) / float64(len(a.policy.Indicators))
	}

	lengthScore := float64(len(raw)) / lengthNorm
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	structureScore := 0.0
	if len(a.policy.StructureTokens) > 0 {
		hits := 0
		for _, tok := range a.policy.StructureTokens {
			if strings.Contains(lower, tok) {
				hits++
			}
		}
		structureScore = float64(hits) / float64(len(a.policy.StructureTokens))
	}

	overall := indicatorWeight*indicatorScore + lengthWeight*lengthScore + structureWeight*structureScore
	label, rationale := a.policy.labelFor(overall, len(matched), len(raw))

	return model.QualityAssessment{
		Label:             label,
		Score:             overall,
		MatchedIndicators: matched,
		Rationale:         rationale,
		IndicatorScore:    indicatorScore,
		LengthScore:       lengthScore,
		StructureScore:    structureScore,
	}
}

// AssessDocument scores a fetched document. The page title is scanned for
// error patterns too: many hosts return a 200 body whose only 404 signal is
// the title.
func (a *Assessor) AssessDocument(doc *model.RawDocument) model.QualityAssessment {
	if doc.Title != "" {
		lower := strings.ToLower(doc.Title)
		for _, ep := range a.policy.ErrorPatterns {
			if strings.Contains(lower, ep.Phrase) {
				return model.QualityAssessment{
					Label:             ep.Label,
					Score:             0.0,
					MatchedIndicators: []string{ep.Phrase},
					Rationale:         fmt.Sprintf("detected error pattern in title: %s", ep.Phrase),
				}
			}
		}
	}
	return a.Assess(doc.RawText)
}

// ForKind returns the assessor matching a document kind.
func ForKind(kind model.DocumentKind) *Assessor {
	if kind == model.KindForm {
		return NewAssessor(FormPolicy())
	}
	return NewAssessor(JobPolicy())
}
