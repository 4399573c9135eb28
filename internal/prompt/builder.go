// Package prompt builds the extraction and validation prompts sent to the
// language model. Builders are pure: same document in, same prompt out.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hirelens/hirelens/internal/model"
)

// Default content budgets, in characters. Extraction sees more of the page
// than validation does; validation only needs enough context to cross-check
// the extracted fields.
const (
	DefaultExtractionBudget = 8000
	DefaultValidationBudget = 4000
)

// Budget tiers for prioritized truncation. High-priority lines may consume up
// to 70% of the budget, medium-priority lines up to 90%, and the remainder is
// filled with the earliest leftover lines.
const (
	highPriorityShare   = 0.7
	mediumPriorityShare = 0.9
)

const jobExtractionSystem = `You are an expert job posting analyzer. Your task is to extract structured information from job posting content and return it as valid JSON.

CRITICAL RULES:
1. Return ONLY valid JSON - no explanations, no markdown, no extra text
2. If information is not found, use empty string "" or empty array [] - never guess or fabricate values
3. For salary, extract numeric values even from text like "$100k-150k" (min 100000, max 150000)
4. Split comma-separated lists into arrays
5. Look for application questions or forms candidates must complete

CONFIDENCE SCORING GUIDELINES:
- 0.9-1.0: all core fields (title, company, description, requirements) clearly present
- 0.7-0.8: most core fields present, minor gaps
- 0.5-0.6: basic information present, several details missing
- 0.3-0.4: limited information, significant gaps
- 0.0-0.2: very sparse or mostly irrelevant content

Return this exact JSON structure:
` + jobSchema

// jobSchema is rendered verbatim into the system prompt so the model returns
// an object with exactly these keys.
const jobSchema = `{
  "job_title": "string",
  "company_name": "string",
  "location": "string",
  "employment_type": "string",
  "remote_policy": "string",
  "job_description": "string (summary, first 500 words)",
  "responsibilities": ["array of strings"],
  "requirements": ["array of required qualifications"],
  "preferred_qualifications": ["array of preferred qualifications"],
  "benefits": ["array of benefits"],
  "salary_min": "number or null",
  "salary_max": "number or null",
  "salary_currency": "string (USD, EUR, etc.)",
  "salary_text": "string (original text)",
  "company_description": "string",
  "company_size": "string",
  "industry": "string",
  "application_deadline": "string or null",
  "application_instructions": "string",
  "application_questions": ["array of questions candidates must answer"],
  "application_url": "string (direct application URL if found)",
  "experience_required": "string (e.g. '3-5 years')",
  "education_required": "string",
  "required_skills": ["array of required technical skills"],
  "preferred_skills": ["array of preferred skills"],
  "confidence_score": "number between 0 and 1 based on information completeness and clarity"
}`

const formExtractionSystem = `You are an expert at analyzing web forms and extracting structured data from scraped form content.

CRITICAL RULES:
1. Return ONLY valid JSON - no explanations, no markdown, no extra text
2. Extract ALL questions in the exact order they appear
3. Identify question types accurately (multiple_choice, short_answer, paragraph, checkboxes, dropdown, linear_scale, date, time, file_upload, email, url, number)
4. Capture all answer options for choice-based questions
5. Note required vs optional questions (usually marked with * or "Required")
6. If you cannot extract certain information, use null or empty values rather than guessing

Return this exact JSON structure:
` + formSchema

const formSchema = `{
  "title": "form title or null",
  "description": "form description or null",
  "form_id": "extracted form ID or null",
  "owner_email": "owner email if visible or null",
  "is_accepting_responses": "true/false",
  "requires_login": "true/false",
  "collect_email": "true/false",
  "questions": [
    {
      "question_text": "the actual question text",
      "question_type": "multiple_choice|short_answer|paragraph|checkboxes|dropdown|linear_scale|date|time|file_upload|email|url|number",
      "question_index": 0,
      "is_required": "true/false",
      "has_other_option": "true/false",
      "options": ["array of option texts"],
      "validation_rules": ["array of validation rule descriptions"]
    }
  ],
  "sections": ["array of section titles"],
  "confidence_score": "number between 0 and 1 based on extraction completeness and clarity"
}`

const validationSystem = `You are an expert validator for structured data extraction. Compare extracted data against the original content and return ONLY valid JSON with this exact structure:
{
  "completeness_score": "number between 0 and 1",
  "accuracy_score": "number between 0 and 1",
  "issues_found": [
    {
      "issue_type": "missing_field|incorrect_value|missing_options|validation_error",
      "description": "description of the issue",
      "severity": "low|medium|high"
    }
  ],
  "validation_confidence": "number between 0 and 1"
}`

// Keyword lists driving prioritized truncation. Lines matching a high-priority
// keyword carry the decision-relevant sections and are retained first.
var (
	jobHighPriority = []string{
		"responsibilities", "requirements", "qualifications", "experience",
		"salary", "benefits", "compensation", "what you", "we are looking",
		"we offer", "skills", "must have", "required", "preferred",
	}
	jobMediumPriority = []string{
		"about", "role", "position", "job", "company", "team", "culture",
		"remote", "hybrid", "location", "apply", "join", "opportunity",
	}

	formHighPriority = []string{
		"question", "required", "option", "choice", "checkbox", "dropdown",
		"scale", "answer", "select", "upload",
	}
	formMediumPriority = []string{
		"form", "title", "description", "section", "submit", "email",
		"login", "response", "name", "date",
	}
)

// Builder renders the two prompts for one document kind. Zero or negative
// budgets fall back to the defaults.
type Builder struct {
	kind             model.DocumentKind
	extractionBudget int
	validationBudget int

	high   []string
	medium []string
}

// NewBuilder creates a prompt builder for the given kind.
func NewBuilder(kind model.DocumentKind, extractionBudget, validationBudget int) *Builder {
	if extractionBudget <= 0 {
		extractionBudget = DefaultExtractionBudget
	}
	if validationBudget <= 0 {
		validationBudget = DefaultValidationBudget
	}

	b := &Builder{
		kind:             kind,
		extractionBudget: extractionBudget,
		validationBudget: validationBudget,
	}
	if kind == model.KindForm {
		b.high, b.medium = formHighPriority, formMediumPriority
	} else {
		b.high, b.medium = jobHighPriority, jobMediumPriority
	}
	return b
}

// Extraction returns the system and user prompts for the first LLM call.
// Content is truncated to the extraction budget with prioritized retention.
func (b *Builder) Extraction(url, content string) (system, user string) {
	if b.kind == model.KindForm {
		system = formExtractionSystem
	} else {
		system = jobExtractionSystem
	}

	user = fmt.Sprintf(`Extract structured information from this content:

URL: %s

CONTENT:
%s

Return the JSON structure with all available information. Be thorough in extraction and provide an accurate confidence score based on the completeness and clarity of the extracted information.`,
		url, b.Truncate(content, b.extractionBudget))
	return system, user
}

// Validation returns the system and user prompts for the second LLM call,
// cross-checking extractedJSON against the original content. Both sides are
// bounded by the validation budget.
func (b *Builder) Validation(content, extractedJSON string) (system, user string) {
	if len(extractedJSON) > b.validationBudget {
		extractedJSON = extractedJSON[:b.validationBudget]
	}

	user = fmt.Sprintf(`Review this extracted data for accuracy and completeness:

ORIGINAL CONTENT:
%s

EXTRACTED DATA:
%s

Check that all fields present in the original content were extracted, values match the source, and nothing was fabricated. Return the JSON assessment.`,
		b.Truncate(content, b.validationBudget), extractedJSON)
	return validationSystem, user
}

// Truncate bounds content to budget characters using prioritized retention:
// lines matching high-priority keywords first (up to 70% of budget), then
// medium-priority lines (up to 90%), then the earliest remaining lines until
// the budget is spent. Content within budget is returned unchanged.
func (b *Builder) Truncate(content string, budget int) string {
	if len(content) <= budget {
		return content
	}

	lines := strings.Split(content, "\n")
	taken := make([]bool, len(lines))
	var kept []string
	total := 0

	add := func(i int, limit int) {
		if taken[i] || total+len(lines[i]) >= limit {
			return
		}
		kept = append(kept, lines[i])
		taken[i] = true
		total += len(lines[i])
	}

	highLimit := int(float64(budget) * highPriorityShare)
	for i, line := range lines {
		if containsAny(strings.ToLower(line), b.high) {
			add(i, highLimit)
		}
	}

	mediumLimit := int(float64(budget) * mediumPriorityShare)
	for i, line := range lines {
		if !taken[i] && containsAny(strings.ToLower(line), b.medium) {
			add(i, mediumLimit)
		}
	}

	for i := range lines {
		if taken[i] {
			continue
		}
		if total+len(lines[i]) >= budget {
			break
		}
		add(i, budget)
	}

	return strings.Join(kept, "\n")
}

func containsAny(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}
