package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityLabelIsProcessable(t *testing.T) {
	assert.True(t, QualityGood.IsProcessable())
	assert.True(t, QualityModerate.IsProcessable())
	assert.True(t, QualityPoor.IsProcessable())
	assert.False(t, QualityInvalid.IsProcessable())
	assert.False(t, QualityError404.IsProcessable())
	assert.False(t, QualityUnknown.IsProcessable())
}

func TestSessionProgress(t *testing.T) {
	s := Session{Total: 4, ProcessedCount: 1}
	assert.InDelta(t, 25.0, s.Progress(), 1e-9)

	empty := Session{}
	assert.Zero(t, empty.Progress())
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionPending.Terminal())
	assert.False(t, SessionRunning.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionFailed.Terminal())
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(TokenUsage{InputTokens: 1000, OutputTokens: 200})
	u.Add(TokenUsage{InputTokens: 500, OutputTokens: 100})
	assert.Equal(t, TokenUsage{InputTokens: 1500, OutputTokens: 300}, u)
}

func TestRecordJobView(t *testing.T) {
	rec := ExtractedRecord{
		Kind: KindJob,
		Fields: map[string]any{
			"job_title":       "Senior Engineer",
			"company_name":    "Acme",
			"salary_min":      120000,
			"required_skills": []any{"Go", "SQL"},
			"not_a_field":     "ignored",
		},
	}

	job, err := rec.JobView()
	assert.NoError(t, err)
	assert.Equal(t, "Senior Engineer", job.JobTitle)
	assert.Equal(t, "Acme", job.CompanyName)
	assert.Equal(t, []string{"Go", "SQL"}, job.RequiredSkills)
	if assert.NotNil(t, job.SalaryMin) {
		assert.Equal(t, 120000, *job.SalaryMin)
	}
	assert.Nil(t, job.SalaryMax)
}

func TestRecordFormView(t *testing.T) {
	rec := ExtractedRecord{
		Kind: KindForm,
		Fields: map[string]any{
			"title": "Customer Survey",
			"questions": []any{
				map[string]any{"question_text": "Your name?", "question_type": "short_answer", "is_required": true},
				map[string]any{"question_text": "Rating", "question_type": "multiple_choice", "options": []any{"1", "2", "3"}},
			},
		},
	}

	form, err := rec.FormView()
	assert.NoError(t, err)
	assert.Equal(t, "Customer Survey", form.Title)
	if assert.Len(t, form.Questions, 2) {
		assert.True(t, form.Questions[0].Required)
		assert.Equal(t, []string{"1", "2", "3"}, form.Questions[1].Options)
	}
}

func TestDefaultValidation(t *testing.T) {
	v := DefaultValidation()
	assert.InDelta(t, 0.8, v.CompletenessScore, 1e-9)
	assert.InDelta(t, 0.8, v.AccuracyScore, 1e-9)
	assert.InDelta(t, 0.5, v.ValidationConfidence, 1e-9)
	assert.True(t, v.Defaulted)
	assert.Empty(t, v.Issues)
}
