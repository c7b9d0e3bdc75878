package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/gateway/provider"
	"stockadvisor/internal/prompt"
	"stockadvisor/internal/types"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) ID() string { return "mock" }

func (m *MockModel) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func newReasoner(t *testing.T, model *MockModel) *Reasoner {
	t.Helper()
	prompts, err := prompt.NewRegistry("")
	require.NoError(t, err)
	r, err := NewReasoner(model, prompts)
	require.NoError(t, err)
	return r
}

func purpose(p string) any {
	return mock.MatchedBy(func(c provider.ChatPayload) bool { return c.Purpose == p && c.ExpectJSON })
}

func TestReasoner_Summarize(t *testing.T) {
	model := new(MockModel)
	model.On("Call", mock.Anything, purpose("summarize")).Return(
		"```json\n{\"summary\":\"Strong quarter.\",\"sources\":[{\"title\":\"Q3\",\"url\":\"https://n.example/q3\"},{\"title\":\"no url\",\"url\":\"\"}]}\n```", nil)

	r := newReasoner(t, model)
	ctx := types.WithRunID(context.Background(), "run-1")
	got, err := r.Summarize(ctx, "AAPL", []types.NewsItem{{Title: "Q3", URL: "https://n.example/q3", Content: "..."}})
	require.NoError(t, err)
	assert.Equal(t, "Strong quarter.", got.Summary)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, types.Source{Title: "Q3", URL: "https://n.example/q3"}, got.Sources[0])

	model.AssertCalled(t, "Call", mock.Anything, mock.MatchedBy(func(c provider.ChatPayload) bool {
		return c.RunID == "run-1"
	}))
}

func TestReasoner_SummarizeRejectsMissingSources(t *testing.T) {
	model := new(MockModel)
	model.On("Call", mock.Anything, mock.Anything).Return(`{"summary":"only text"}`, nil)

	_, err := newReasoner(t, model).Summarize(context.Background(), "AAPL", nil)
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.True(t, gateway.IsProviderError(err))
	assert.NotContains(t, err.Error(), "file://", "schema location must not leak the working directory")
}

func TestReasoner_SummarizeRejectsProse(t *testing.T) {
	model := new(MockModel)
	model.On("Call", mock.Anything, mock.Anything).Return("The news looks fine.", nil)

	_, err := newReasoner(t, model).Summarize(context.Background(), "AAPL", nil)
	assert.ErrorIs(t, err, ErrMalformedOutput)

	var pe *gateway.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "mock", pe.Provider)
	assert.Equal(t, "summarize", pe.Op)
}

func TestReasoner_Recommend(t *testing.T) {
	cases := []struct {
		raw  string
		want types.Action
	}{
		{`{"action":"Buy","reasoning":"Cheap vs peers."}`, types.ActionBuy},
		{`{"action":"NOT_BUY","reasoning":"Too volatile."}`, types.ActionNotBuy},
		{`{'action': 'Not Buy', 'reasoning': 'Repaired quotes.',}`, types.ActionNotBuy},
	}
	for _, tc := range cases {
		model := new(MockModel)
		model.On("Call", mock.Anything, purpose("recommend")).Return(tc.raw, nil)

		got, err := newReasoner(t, model).Recommend(context.Background(), types.RecommendInput{
			Ticker:       "KO",
			RiskAppetite: types.RiskLow,
			TimeHorizon:  types.HorizonLong,
			NewsSummary:  types.NewsSummary{Summary: "steady"},
		})
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got.Action, tc.raw)
		assert.NotEmpty(t, got.Reasoning)
	}
}

func TestReasoner_RecommendRejectsUnknownAction(t *testing.T) {
	model := new(MockModel)
	model.On("Call", mock.Anything, mock.Anything).Return(`{"action":"Maybe","reasoning":"unsure"}`, nil)

	_, err := newReasoner(t, model).Recommend(context.Background(), types.RecommendInput{Ticker: "KO"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.True(t, gateway.IsProviderError(err))
}

func TestReasoner_ModelFailureIsProviderError(t *testing.T) {
	model := new(MockModel)
	model.On("Call", mock.Anything, mock.Anything).Return("", errors.New("connection reset"))

	_, err := newReasoner(t, model).Recommend(context.Background(), types.RecommendInput{Ticker: "KO"})
	require.Error(t, err)
	assert.True(t, gateway.IsProviderError(err))
}
