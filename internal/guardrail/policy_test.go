package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stockadvisor/internal/types"
)

func beta(v float64) *float64 { return &v }

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name   string
		action types.Action
		risk   types.RiskAppetite
		beta   *float64
		want   types.GuardrailOutcome
	}{
		{"buy low high beta", types.ActionBuy, types.RiskLow, beta(1.5),
			types.GuardrailOutcome{Triggered: true, Reason: ReasonHighBeta, EffectiveAction: types.ActionNotBuy}},
		{"buy low low beta", types.ActionBuy, types.RiskLow, beta(0.8),
			types.GuardrailOutcome{EffectiveAction: types.ActionBuy}},
		{"buy low beta exactly one", types.ActionBuy, types.RiskLow, beta(1.0),
			types.GuardrailOutcome{EffectiveAction: types.ActionBuy}},
		{"buy high risk high beta", types.ActionBuy, types.RiskHigh, beta(2.5),
			types.GuardrailOutcome{EffectiveAction: types.ActionBuy}},
		{"buy medium risk high beta", types.ActionBuy, types.RiskMedium, beta(1.7),
			types.GuardrailOutcome{EffectiveAction: types.ActionBuy}},
		{"buy low beta absent", types.ActionBuy, types.RiskLow, nil,
			types.GuardrailOutcome{EffectiveAction: types.ActionBuy}},
		{"not buy low high beta", types.ActionNotBuy, types.RiskLow, beta(1.9),
			types.GuardrailOutcome{EffectiveAction: types.ActionNotBuy}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(Input{
				Ticker:         "X",
				RiskAppetite:   tc.risk,
				Beta:           tc.beta,
				Recommendation: types.Recommendation{Action: tc.action, Reasoning: "r"},
			})
			assert.Equal(t, tc.want, got)
		})
	}
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Record(ctx context.Context, rec Record) error {
	return m.Called(ctx, rec).Error(0)
}

func TestPolicy_AuditsEveryEvaluation(t *testing.T) {
	sink := new(MockSink)
	failing := new(MockSink)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(r Record) bool {
		return r.RunID == "run-9" && r.Triggered && r.ProposedAction == types.ActionBuy &&
			r.EffectiveAction == types.ActionNotBuy && r.Reason == ReasonHighBeta && !r.EvaluatedAt.IsZero()
	})).Return(nil).Once()
	failing.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	p := NewPolicy(sink, nil, failing, LogSink{})
	out := p.Evaluate(context.Background(), Input{
		RunID:          "run-9",
		Ticker:         "NVDA",
		RiskAppetite:   types.RiskLow,
		Beta:           beta(1.7),
		Recommendation: types.Recommendation{Action: types.ActionBuy},
	})

	assert.True(t, out.Triggered)
	assert.Equal(t, types.ActionNotBuy, out.EffectiveAction)
	sink.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestPolicy_PassedRecordIsAudited(t *testing.T) {
	sink := new(MockSink)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(r Record) bool {
		return !r.Triggered && r.Reason == "" && r.EffectiveAction == types.ActionBuy
	})).Return(nil).Once()

	out := NewPolicy(sink).Evaluate(context.Background(), Input{
		RunID:          "run-1",
		Ticker:         "KO",
		RiskAppetite:   types.RiskLow,
		Beta:           beta(0.6),
		Recommendation: types.Recommendation{Action: types.ActionBuy},
	})
	assert.False(t, out.Triggered)
	sink.AssertExpectations(t)
}
