package healing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StrictJSON(t *testing.T) {
	raw := `{
		"analysis": "The selector changed after the last deploy",
		"root_cause": "stale selector",
		"confidence": 0.85,
		"suggested_fix": "use data-testid instead of id",
		"updated_code": "page.Locator(\"[data-testid=submit]\").Click()",
		"recommendations": ["prefer data-testid selectors", "add explicit waits"]
	}`

	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "stale selector", res.RootCause)
	assert.Equal(t, "use data-testid instead of id", res.SuggestedFix)
	assert.InDelta(t, 0.85, res.Confidence, 1e-9)
	assert.Len(t, res.Recommendations, 2)
	assert.Equal(t, raw, res.RawResponse)
	assert.False(t, res.Unparsed)
}

func TestParse_JSONInsideFence(t *testing.T) {
	raw := "Here is my analysis:\n```json\n" +
		`{"analysis": "a", "root_cause": "timing", "confidence": 0.6, "suggested_fix": "wait"}` +
		"\n```\nHope that helps!"

	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "timing", res.RootCause)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}

func TestParse_PrefersLastFenceAfterReasoning(t *testing.T) {
	// Models emit reasoning with intermediate fences before the final answer.
	raw := "Let me think.\n```\nsome intermediate scratch work\n```\n" +
		"Final answer:\n```json\n" +
		`{"root_cause": "race condition", "confidence": 0.7}` +
		"\n```"

	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "race condition", res.RootCause)
}

func TestParse_FallbackFieldExtraction(t *testing.T) {
	// Scenario: unquoted keys inside the fence defeat strict decoding.
	raw := "```\nroot_cause: \"typo in selector\",\nconfidence: 0.95,\n" +
		"suggested_fix: \"change #passwordx to #password\"\n```"

	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "typo in selector", res.RootCause)
	assert.Equal(t, "change #passwordx to #password", res.SuggestedFix)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, raw, res.RawResponse)
}

func TestParse_ConfidenceFormats(t *testing.T) {
	// "0.95", "95%", and "95.0" all normalize to the same float.
	for _, token := range []string{`0.95`, `"95%"`, `95.0`} {
		raw := `{"root_cause": "x", "confidence": ` + token + `}`
		res, err := NewParser(nil).Parse(raw)
		require.NoError(t, err, "token %s", token)
		assert.InDelta(t, 0.95, res.Confidence, 1e-9, "token %s", token)
	}
}

func TestParse_ConfidenceOutOfRangeClamped(t *testing.T) {
	raw := `{"root_cause": "x", "confidence": 400}`
	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	// 400 reads as 400% and clamps to the top of the range.
	assert.Equal(t, 1.0, res.Confidence)

	raw = `{"root_cause": "x", "confidence": -0.3}`
	res, err = NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestParse_MissingRootCauseFails(t *testing.T) {
	raw := `{"analysis": "something broke", "confidence": 0.9}`
	res, err := NewParser(nil).Parse(raw)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParse_MissingConfidenceFails(t *testing.T) {
	raw := `{"root_cause": "bad selector"}`
	_, err := NewParser(nil).Parse(raw)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParse_FreeTextFails(t *testing.T) {
	_, err := NewParser(nil).Parse("I have no idea what went wrong here, sorry.")
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParse_Idempotent(t *testing.T) {
	raw := "```json\n" +
		`{"analysis": "a", "root_cause": "b", "confidence": "72%", "recommendations": ["r1"]}` +
		"\n```"

	p := NewParser(nil)
	first, err := p.Parse(raw)
	require.NoError(t, err)
	second, err := p.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParse_RecommendationsAsString(t *testing.T) {
	raw := `{"root_cause": "x", "confidence": 0.5, "recommendations": "add retries"}`
	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"add retries"}, res.Recommendations)
}

func TestParse_UpdatedTestCodeAlias(t *testing.T) {
	raw := `{"root_cause": "x", "confidence": 0.5, "updated_test_code": "fixed code"}`
	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "fixed code", res.UpdatedCode)
}

func TestParse_JSONEmbeddedInProse(t *testing.T) {
	raw := `Based on the DOM, here is my conclusion: {"root_cause": "overlay blocks click", "confidence": 0.8} as requested.`
	res, err := NewParser(nil).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "overlay blocks click", res.RootCause)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}
