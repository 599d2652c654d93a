package healing

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kamilpajak/remedy/pkg/models"
)

// ErrUnparsable means no parsing stage could recover at least a root cause
// and a confidence from the model output. The raw text stays with the caller.
var ErrUnparsable = errors.New("unparsable model response")

var (
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

	// Fallback field extraction. Keys may or may not be quoted: local models
	// routinely emit `root_cause: "..."` instead of strict JSON.
	analysisPattern   = regexp.MustCompile(`"?analysis"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	rootCausePattern  = regexp.MustCompile(`"?root_cause"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fixPattern        = regexp.MustCompile(`"?suggested_fix"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	codePattern       = regexp.MustCompile(`"?updated(?:_test)?_code"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	confidencePattern = regexp.MustCompile(`"?confidence"?\s*:\s*"?([0-9]+(?:\.[0-9]+)?%?)"?`)
	recsPattern       = regexp.MustCompile(`"?recommendations"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Parser extracts a structured AnalysisResult from free-form model output.
// Parsing is a fixed fallback chain: fenced-block JSON, brace-span JSON,
// whole-text JSON, then field-by-field extraction. Re-parsing the same text
// always yields an identical result.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a Parser. A nil logger disables deviation logging.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// rawPayload is the shape the prompt schema asks for. Confidence and
// recommendations are decoded leniently since models drift on both.
type rawPayload struct {
	Analysis        string          `json:"analysis"`
	RootCause       string          `json:"root_cause"`
	Confidence      json.RawMessage `json:"confidence"`
	SuggestedFix    string          `json:"suggested_fix"`
	UpdatedCode     string          `json:"updated_code"`
	UpdatedTestCode string          `json:"updated_test_code"`
	Recommendations json.RawMessage `json:"recommendations"`
}

// Parse extracts an AnalysisResult from raw. On success the result carries
// raw verbatim in RawResponse; on failure ErrUnparsable is returned.
func (p *Parser) Parse(raw string) (*models.AnalysisResult, error) {
	for _, candidate := range p.candidates(raw) {
		if res, ok := p.decodeStrict(candidate, raw); ok {
			return res, nil
		}
	}

	if res, ok := p.extractFields(raw); ok {
		return res, nil
	}

	return nil, ErrUnparsable
}

// candidates returns decode candidates in priority order. Models place the
// final answer after any reasoning, so fenced blocks are scanned last-first,
// preferring a block that mentions every required field.
func (p *Parser) candidates(raw string) []string {
	var out []string

	matches := fencePattern.FindAllStringSubmatch(raw, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		block := strings.TrimSpace(matches[i][1])
		if strings.Contains(block, "root_cause") && strings.Contains(block, "confidence") {
			out = append(out, block)
		}
	}
	if len(matches) > 0 {
		out = append(out, strings.TrimSpace(matches[len(matches)-1][1]))
	}

	// Brace span of the whole text, for responses without fences.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		out = append(out, raw[start:end+1])
	}

	out = append(out, strings.TrimSpace(raw))
	return out
}

// decodeStrict attempts a structural JSON decode of candidate.
func (p *Parser) decodeStrict(candidate, raw string) (*models.AnalysisResult, bool) {
	var payload rawPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, false
	}
	if payload.RootCause == "" || len(payload.Confidence) == 0 {
		return nil, false
	}

	confidence, ok := p.parseConfidence(string(payload.Confidence))
	if !ok {
		return nil, false
	}

	code := payload.UpdatedCode
	if code == "" {
		code = payload.UpdatedTestCode
	}

	return &models.AnalysisResult{
		Analysis:        payload.Analysis,
		RootCause:       payload.RootCause,
		SuggestedFix:    payload.SuggestedFix,
		UpdatedCode:     code,
		Confidence:      confidence,
		Recommendations: decodeRecommendations(payload.Recommendations),
		RawResponse:     raw,
	}, true
}

// extractFields is the best-effort recovery path: each required field name
// followed by its value, scanned over the entire text.
func (p *Parser) extractFields(raw string) (*models.AnalysisResult, bool) {
	rootCause := firstGroup(rootCausePattern, raw)
	confMatch := firstGroup(confidencePattern, raw)
	if rootCause == "" || confMatch == "" {
		return nil, false
	}

	confidence, ok := p.parseConfidence(confMatch)
	if !ok {
		return nil, false
	}

	res := &models.AnalysisResult{
		Analysis:     unescapeJSON(firstGroup(analysisPattern, raw)),
		RootCause:    unescapeJSON(rootCause),
		SuggestedFix: unescapeJSON(firstGroup(fixPattern, raw)),
		UpdatedCode:  unescapeJSON(firstGroup(codePattern, raw)),
		Confidence:   confidence,
		RawResponse:  raw,
	}
	if rec := unescapeJSON(firstGroup(recsPattern, raw)); rec != "" {
		res.Recommendations = []string{rec}
	}
	return res, true
}

// parseConfidence normalizes a confidence token to [0,1]. Accepts fractions
// ("0.95"), percentages ("95%"), and bare percents ("95.0"); out-of-range
// values are clamped with a logged deviation, never rejected.
func (p *Parser) parseConfidence(token string) (float64, bool) {
	token = strings.TrimSpace(strings.Trim(token, `"`))
	percent := strings.HasSuffix(token, "%")
	token = strings.TrimSuffix(token, "%")

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	if percent || v > 1 {
		v /= 100
	}

	clamped, deviated := models.ClampConfidence(v)
	if deviated {
		p.log.Warn("confidence out of range, clamped",
			zap.Float64("raw", v), zap.Float64("clamped", clamped))
	}
	return clamped, true
}

func decodeRecommendations(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// unescapeJSON resolves backslash escapes in a regex-extracted JSON string
// value. Falls back to the input when it is not a valid JSON string body.
func unescapeJSON(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
