package model

import (
	"encoding/json"
	"time"
)

// JobFields holds the structured fields extracted from a job posting.
// Keys not found in the source content are left zero-valued; the extractor
// never fabricates values for missing fields.
type JobFields struct {
	JobTitle                string   `json:"job_title"`
	CompanyName             string   `json:"company_name"`
	Location                string   `json:"location"`
	EmploymentType          string   `json:"employment_type"`
	RemotePolicy            string   `json:"remote_policy"`
	JobDescription          string   `json:"job_description"`
	Responsibilities        []string `json:"responsibilities"`
	Requirements            []string `json:"requirements"`
	PreferredQualifications []string `json:"preferred_qualifications"`
	Benefits                []string `json:"benefits"`
	SalaryMin               *int     `json:"salary_min"`
	SalaryMax               *int     `json:"salary_max"`
	SalaryCurrency          string   `json:"salary_currency"`
	SalaryText              string   `json:"salary_text"`
	CompanyDescription      string   `json:"company_description"`
	CompanySize             string   `json:"company_size"`
	Industry                string   `json:"industry"`
	ApplicationDeadline     string   `json:"application_deadline"`
	ApplicationInstructions string   `json:"application_instructions"`
	ApplicationQuestions    []string `json:"application_questions"`
	ApplicationURL          string   `json:"application_url"`
	ExperienceRequired      string   `json:"experience_required"`
	EducationRequired       string   `json:"education_required"`
	RequiredSkills          []string `json:"required_skills"`
	PreferredSkills         []string `json:"preferred_skills"`
}

// FormQuestion is a single question extracted from a web form.
type FormQuestion struct {
	Text       string   `json:"question_text"`
	Type       string   `json:"question_type"`
	Index      int      `json:"question_index"`
	Required   bool     `json:"is_required"`
	Options    []string `json:"options,omitempty"`
	HasOther   bool     `json:"has_other_option,omitempty"`
	Validation []string `json:"validation_rules,omitempty"`
}

// FormFields holds the structured fields extracted from a web form.
type FormFields struct {
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	FormID               string         `json:"form_id"`
	OwnerEmail           string         `json:"owner_email,omitempty"`
	IsAcceptingResponses bool           `json:"is_accepting_responses"`
	RequiresLogin        bool           `json:"requires_login"`
	CollectEmail         bool           `json:"collect_email"`
	Questions            []FormQuestion `json:"questions"`
	Sections             []string       `json:"sections,omitempty"`
}

// ExtractedRecord is the structured result of one extraction. Fields holds
// the parsed mapping exactly as the model returned it; the typed views above
// are decoded from it per kind. Confidence fields are added downstream by
// the fuser and never recomputed once stored.
type ExtractedRecord struct {
	ID                   string         `json:"id"`
	SessionID            string         `json:"session_id,omitempty"`
	SourceURL            string         `json:"source_url"`
	Kind                 DocumentKind   `json:"kind"`
	Fields               map[string]any `json:"fields"`
	AIConfidence         float64        `json:"ai_confidence"`
	ValidationConfidence float64        `json:"validation_confidence"`
	FinalConfidence      float64        `json:"final_confidence"`
	QualityLabel         QualityLabel   `json:"quality_label"`
	QualityReason        string         `json:"quality_reason,omitempty"`
	ExtractionNotes      []string       `json:"extraction_notes,omitempty"`
	TokenUsage           TokenUsage     `json:"token_usage"`
	ProcessedAt          time.Time      `json:"processed_at"`
	ProcessingMillis     int64          `json:"processing_time_ms"`
}

// JobView decodes the raw field mapping into the typed job shape. Unknown
// keys are dropped; missing keys stay zero-valued.
func (r *ExtractedRecord) JobView() (JobFields, error) {
	var out JobFields
	err := decodeFields(r.Fields, &out)
	return out, err
}

// FormView decodes the raw field mapping into the typed form shape.
func (r *ExtractedRecord) FormView() (FormFields, error) {
	var out FormFields
	err := decodeFields(r.Fields, &out)
	return out, err
}

func decodeFields(fields map[string]any, dst any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// TokenUsage tallies LLM token consumption for one record.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ValidationIssue is a single problem the validation pass found with an
// extraction.
type ValidationIssue struct {
	Kind        string `json:"issue_type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// ValidationAssessment is the parsed result of the second (validation) LLM
// call, or the fixed defaults when that call fails.
type ValidationAssessment struct {
	CompletenessScore    float64           `json:"completeness_score"`
	AccuracyScore        float64           `json:"accuracy_score"`
	Issues               []ValidationIssue `json:"issues_found,omitempty"`
	ValidationConfidence float64           `json:"validation_confidence"`
	Defaulted            bool              `json:"defaulted,omitempty"`
}

// DefaultValidation returns the fixed fallback used when the validation call
// fails. The pipeline never aborts solely because validation was unavailable.
func DefaultValidation() ValidationAssessment {
	return ValidationAssessment{
		CompletenessScore:    0.8,
		AccuracyScore:        0.8,
		ValidationConfidence: 0.5,
		Defaulted:            true,
	}
}
