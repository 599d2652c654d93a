package models

// AnalysisResult is the structured diagnosis extracted from a model response.
// Produced once per failure and never mutated afterwards.
type AnalysisResult struct {
	Analysis        string   `json:"analysis"`
	RootCause       string   `json:"root_cause"`
	SuggestedFix    string   `json:"suggested_fix"`
	UpdatedCode     string   `json:"updated_code,omitempty"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations,omitempty"`
	RawResponse     string   `json:"raw_response"`

	// Unparsed is set when no confidence could be extracted from the model
	// output and the 0.0 default was applied. Downstream consumers must not
	// treat such a result as a scored diagnosis.
	Unparsed bool `json:"unparsed,omitempty"`
}

// Decision is the gate's verdict on an analysis result.
type Decision string

const (
	DecisionAccept        Decision = "accept"
	DecisionLowConfidence Decision = "low_confidence"
	DecisionUnusable      Decision = "unusable"
)

// ClampConfidence coerces a confidence value into [0, 1]. The second return
// reports whether the input was out of range.
func ClampConfidence(v float64) (float64, bool) {
	switch {
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	default:
		return v, false
	}
}
