package confidence

import "github.com/liamashdown/launchwatch/internal/token"

// SuccessEstimator supplies the probability that a token doubles. Trained
// models live outside this service; they plug in through this interface.
type SuccessEstimator interface {
	Estimate(m token.Metrics, score float64) float64
}

// StepEstimator is the fallback estimator used when no model is configured
type StepEstimator struct{}

// Estimate maps the score onto a fixed probability ladder
func (StepEstimator) Estimate(_ token.Metrics, score float64) float64 {
	switch {
	case score >= 75:
		return 0.7
	case score >= 60:
		return 0.5
	case score >= 45:
		return 0.3
	default:
		return 0.1
	}
}

// Action is the trading recommendation attached to an alert
type Action string

const (
	ActionStrongBuy Action = "STRONG_BUY"
	ActionBuy       Action = "BUY"
	ActionWatch     Action = "WATCH"
	ActionSkip      Action = "SKIP"
)

// Recommend derives the action from the score and the report's risk
func Recommend(score float64, r Report) Action {
	switch {
	case score >= 75 && r.Risk == RiskLow:
		return ActionStrongBuy
	case score >= 60 && (r.Risk == RiskLow || r.Risk == RiskMedium):
		return ActionBuy
	case score >= 45:
		return ActionWatch
	default:
		return ActionSkip
	}
}

// Describe returns the human readable form of an action
func (a Action) Describe() string {
	switch a {
	case ActionStrongBuy:
		return "STRONG BUY - High confidence"
	case ActionBuy:
		return "BUY - Moderate confidence"
	case ActionWatch:
		return "WATCH - Consider small position"
	default:
		return "SKIP - Low confidence"
	}
}
