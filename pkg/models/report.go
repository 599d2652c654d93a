package models

import "time"

// HealingReport is the persisted artifact summarizing one analyzed failure.
type HealingReport struct {
	TestID    string         `json:"test_id"`
	Timestamp time.Time      `json:"timestamp"`
	Model     string         `json:"model"`
	Result    AnalysisResult `json:"result"`
	Context   FailureContext `json:"context"`
	Decision  Decision       `json:"decision"`

	// Unavailable is set when the model could not be reached or its output
	// could not be parsed; Result then carries the 0.0 default confidence and
	// Reason explains what went wrong.
	Unavailable bool   `json:"unavailable,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
