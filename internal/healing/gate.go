package healing

import "github.com/kamilpajak/remedy/pkg/models"

// Gate decides how prominently an analysis is surfaced. It never blocks
// report persistence: a low-confidence or unusable analysis is itself
// diagnostic information.
type Gate struct {
	lowThreshold float64
}

// NewGate creates a Gate with the injected low-confidence threshold.
func NewGate(lowThreshold float64) *Gate {
	return &Gate{lowThreshold: lowThreshold}
}

// Evaluate returns the decision for a parsed result. A nil or unparsed
// result is always unusable.
func (g *Gate) Evaluate(res *models.AnalysisResult) models.Decision {
	if res == nil || res.Unparsed {
		return models.DecisionUnusable
	}
	if res.Confidence < g.lowThreshold {
		return models.DecisionLowConfidence
	}
	return models.DecisionAccept
}
