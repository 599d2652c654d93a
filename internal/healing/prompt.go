package healing

import (
	"fmt"
	"strings"

	"github.com/kamilpajak/remedy/pkg/models"
)

// systemPrompt pins the model's role and output discipline.
const systemPrompt = "You are an expert QA engineer and test automation specialist. " +
	"Respond ONLY with valid JSON, no markdown or extra text."

// responseSchema is embedded verbatim in every prompt so the parser has a
// fixed contract to match against.
const responseSchema = `{
    "analysis": "Detailed analysis of what went wrong",
    "root_cause": "Specific root cause identified",
    "confidence": 0.85,
    "suggested_fix": "Specific fix recommendation",
    "updated_code": "Complete fixed test code (if confident)",
    "recommendations": ["Additional suggestions for test stability"]
}`

// maxErrorLen caps the error message included in the prompt.
const maxErrorLen = 2000

// PromptBuilder serializes a FailureContext into a model request. Building is
// deterministic: the same context always yields the same prompt text, and the
// capture timestamp is deliberately excluded.
type PromptBuilder struct {
	contextWindow int
}

// NewPromptBuilder creates a builder capping DOM excerpts at contextWindow.
func NewPromptBuilder(contextWindow int) *PromptBuilder {
	return &PromptBuilder{contextWindow: contextWindow}
}

// Build renders the prompt for one failure.
func (b *PromptBuilder) Build(fc *models.FailureContext) string {
	errMsg := fc.ErrorMessage
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen] + "..."
	}

	dom := fc.DOMExcerpt
	if dom == "" {
		dom = "No DOM captured"
	} else if len(dom) > b.contextWindow {
		dom = dom[:b.contextWindow] + "..."
	}

	var p strings.Builder
	p.WriteString("A browser UI test has failed and needs analysis for potential auto-healing.\n\n")
	p.WriteString("## Test Information\n")
	fmt.Fprintf(&p, "- Test Name: %s\n", fc.TestID)
	fmt.Fprintf(&p, "- Error Kind: %s\n", fc.ErrorKind)
	fmt.Fprintf(&p, "- URL: %s\n", orNA(fc.URL))
	fmt.Fprintf(&p, "- Page Title: %s\n\n", orNA(fc.PageTitle))
	p.WriteString("## Error Message\n```\n")
	p.WriteString(errMsg)
	p.WriteString("\n```\n\n")
	p.WriteString("## DOM Context (truncated)\n```html\n")
	p.WriteString(dom)
	p.WriteString("\n```\n\n")
	p.WriteString("## Your Task\n")
	p.WriteString("Analyze this test failure and provide:\n")
	p.WriteString("1. Root cause analysis: what exactly caused this test to fail?\n")
	p.WriteString("2. Confidence score: rate your confidence in the analysis (0.0 to 1.0)\n")
	p.WriteString("3. Suggested fix: specific code changes or approach to fix the test\n")
	p.WriteString("4. Updated code: a corrected version of the failing test step\n")
	p.WriteString("5. Recommendations: additional suggestions for test stability\n\n")
	p.WriteString("IMPORTANT: Respond ONLY with a valid JSON object matching this schema, no markdown formatting or extra text:\n\n")
	p.WriteString(responseSchema)
	p.WriteString("\n\nFocus on common browser automation issues: changed selectors, timing and race conditions, network and loading problems, state management, flaky patterns.\n")

	return p.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
