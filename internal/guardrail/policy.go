// Package guardrail 在 LLM 建议之后执行确定性的风控规则，并记录每次评估。
package guardrail

import (
	"context"
	"time"

	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
)

const (
	// BetaThreshold is the beta above which a stock counts as high-volatility.
	BetaThreshold = 1.0
	// ReasonHighBeta is reported when the Low-risk high-beta rule overrides a Buy.
	ReasonHighBeta = "high-beta stock unsuitable for low risk appetite"
)

// Input is what the rule looks at.
type Input struct {
	RunID          string
	Ticker         string
	RiskAppetite   types.RiskAppetite
	Beta           *float64
	Recommendation types.Recommendation
}

// Evaluate applies the rule set. It is pure and never fails.
func Evaluate(in Input) types.GuardrailOutcome {
	rec := in.Recommendation
	if rec.Action == types.ActionBuy &&
		in.RiskAppetite == types.RiskLow &&
		in.Beta != nil && *in.Beta > BetaThreshold {
		return types.GuardrailOutcome{
			Triggered:       true,
			Reason:          ReasonHighBeta,
			EffectiveAction: types.ActionNotBuy,
		}
	}
	return types.GuardrailOutcome{EffectiveAction: rec.Action}
}

// Record is one audit entry per evaluation.
type Record struct {
	RunID           string
	Ticker          string
	RiskAppetite    types.RiskAppetite
	Beta            *float64
	ProposedAction  types.Action
	EffectiveAction types.Action
	Triggered       bool
	Reason          string
	EvaluatedAt     time.Time
}

// AuditSink receives every evaluation. Sink failures never change the outcome.
type AuditSink interface {
	Record(ctx context.Context, rec Record) error
}

type Policy struct {
	sinks []AuditSink
	now   func() time.Time
}

func NewPolicy(sinks ...AuditSink) *Policy {
	out := make([]AuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Policy{sinks: out, now: time.Now}
}

// Evaluate runs the rules and fans the result out to every audit sink.
func (p *Policy) Evaluate(ctx context.Context, in Input) types.GuardrailOutcome {
	outcome := Evaluate(in)
	if p == nil {
		return outcome
	}
	rec := Record{
		RunID:           in.RunID,
		Ticker:          in.Ticker,
		RiskAppetite:    in.RiskAppetite,
		Beta:            in.Beta,
		ProposedAction:  in.Recommendation.Action,
		EffectiveAction: outcome.EffectiveAction,
		Triggered:       outcome.Triggered,
		Reason:          outcome.Reason,
		EvaluatedAt:     p.now().UTC(),
	}
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, rec); err != nil {
			logger.Warnf("[guardrail] run=%s audit sink %T failed: %v", in.RunID, sink, err)
		}
	}
	return outcome
}
