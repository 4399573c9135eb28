package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelens/hirelens/internal/model"
)

func TestTruncate_WithinBudgetUnchanged(t *testing.T) {
	b := NewBuilder(model.KindJob, 8000, 4000)

	content := "Responsibilities: build things\nfiller line one\nfiller line two"
	assert.Equal(t, content, b.Truncate(content, 8000))
}

func TestTruncate_HighPriorityRetainedFirst(t *testing.T) {
	b := NewBuilder(model.KindJob, 0, 0)

	// Content well over budget: a few high-priority lines buried under filler.
	var sb strings.Builder
	filler := strings.Repeat("z", 80)
	for i := 0; i < 10; i++ {
		sb.WriteString(filler + "\n")
	}
	high := []string{
		"Responsibilities: own the ingestion pipeline",
		"Requirements: 5 years of Go",
		"Salary: $150k-$180k plus equity",
	}
	for _, line := range high {
		sb.WriteString(line + "\n")
	}
	for i := 0; i < 100; i++ {
		sb.WriteString(filler + "\n")
	}

	budget := 1000
	got := b.Truncate(sb.String(), budget)

	require.LessOrEqual(t, len(got), budget)

	// Every high-priority line survives, and all of them appear before any
	// filler line.
	lastHigh, firstFiller := -1, -1
	for _, line := range high {
		idx := strings.Index(got, line)
		require.GreaterOrEqual(t, idx, 0, "high-priority line dropped: %s", line)
		if idx > lastHigh {
			lastHigh = idx
		}
	}
	firstFiller = strings.Index(got, filler)
	if firstFiller >= 0 {
		assert.Less(t, lastHigh, firstFiller, "filler appeared before a high-priority line")
	}
}

func TestTruncate_MediumBeforeFiller(t *testing.T) {
	b := NewBuilder(model.KindJob, 0, 0)

	medium := "About the company and the team culture"
	filler := strings.Repeat("y", 90)
	lines := []string{filler, filler, medium, filler, filler, filler}
	content := strings.Join(lines, "\n")

	got := b.Truncate(content, 300)

	mi := strings.Index(got, medium)
	fi := strings.Index(got, filler)
	require.GreaterOrEqual(t, mi, 0)
	if fi >= 0 {
		assert.Less(t, mi, fi)
	}
}

func TestTruncate_FillerPreservesOriginalOrder(t *testing.T) {
	b := NewBuilder(model.KindForm, 0, 0)

	content := "alpha line\nbravo line\ncharlie line\n" + strings.Repeat("x", 500)
	got := b.Truncate(content, 100)

	ai := strings.Index(got, "alpha line")
	bi := strings.Index(got, "bravo line")
	require.GreaterOrEqual(t, ai, 0)
	require.GreaterOrEqual(t, bi, 0)
	assert.Less(t, ai, bi)
}

func TestExtraction_JobPrompt(t *testing.T) {
	b := NewBuilder(model.KindJob, 8000, 4000)

	system, user := b.Extraction("https://example.com/jobs/1", "Senior Engineer at Acme. Responsibilities: ship software.")

	assert.Contains(t, system, "job posting analyzer")
	assert.Contains(t, system, `"job_title"`)
	assert.Contains(t, system, `"confidence_score"`)
	assert.Contains(t, system, "never guess or fabricate")
	assert.Contains(t, user, "https://example.com/jobs/1")
	assert.Contains(t, user, "Responsibilities: ship software.")
}

func TestExtraction_FormPrompt(t *testing.T) {
	b := NewBuilder(model.KindForm, 8000, 4000)

	system, user := b.Extraction("https://forms.example.com/f/1", "Question 1: What is your name? (Required)")

	assert.Contains(t, system, "web forms")
	assert.Contains(t, system, `"question_text"`)
	assert.Contains(t, system, `"is_accepting_responses"`)
	assert.Contains(t, user, "What is your name?")
}

func TestExtraction_TruncatesOversizedContent(t *testing.T) {
	b := NewBuilder(model.KindJob, 500, 4000)

	_, user := b.Extraction("https://example.com", strings.Repeat("padding line\n", 500))

	// The user prompt carries the template plus at most the budgeted content.
	assert.Less(t, len(user), 500+400)
}

func TestValidation_Prompt(t *testing.T) {
	b := NewBuilder(model.KindJob, 8000, 4000)

	system, user := b.Validation("Original job content here", `{"job_title":"Engineer"}`)

	assert.Contains(t, system, `"completeness_score"`)
	assert.Contains(t, system, `"accuracy_score"`)
	assert.Contains(t, system, `"issues_found"`)
	assert.Contains(t, user, "Original job content here")
	assert.Contains(t, user, `{"job_title":"Engineer"}`)
}

func TestValidation_BoundsExtractedJSON(t *testing.T) {
	b := NewBuilder(model.KindForm, 8000, 100)

	big := `{"title":"` + strings.Repeat("a", 1000) + `"}`
	_, user := b.Validation("content", big)

	assert.NotContains(t, user, big)
	assert.Contains(t, user, big[:100])
}

func TestNewBuilder_DefaultBudgets(t *testing.T) {
	b := NewBuilder(model.KindJob, 0, -1)

	assert.Equal(t, DefaultExtractionBudget, b.extractionBudget)
	assert.Equal(t, DefaultValidationBudget, b.validationBudget)
}
