package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockadvisor/internal/cache"
	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/types"
	"stockadvisor/internal/workflow"
)

type MockSearch struct{ mock.Mock }

func (m *MockSearch) Search(ctx context.Context, query string, max int) ([]types.NewsItem, error) {
	args := m.Called(ctx, query, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.NewsItem), args.Error(1)
}

type MockFundamentals struct{ mock.Mock }

func (m *MockFundamentals) Fetch(ctx context.Context, ticker string) (json.RawMessage, error) {
	args := m.Called(ctx, ticker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return json.RawMessage(args.String(0)), args.Error(1)
}

type MockReasoner struct{ mock.Mock }

func (m *MockReasoner) Summarize(ctx context.Context, ticker string, items []types.NewsItem) (types.NewsSummary, error) {
	args := m.Called(ctx, ticker, items)
	return args.Get(0).(types.NewsSummary), args.Error(1)
}

func (m *MockReasoner) Recommend(ctx context.Context, in types.RecommendInput) (types.Recommendation, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.Recommendation), args.Error(1)
}

type recordingSink struct{ records []guardrail.Record }

func (s *recordingSink) Record(_ context.Context, rec guardrail.Record) error {
	s.records = append(s.records, rec)
	return nil
}

type harness struct {
	search   *MockSearch
	funds    *MockFundamentals
	reasoner *MockReasoner
	sink     *recordingSink
	cache    *cache.Store
	coord    *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		search:   new(MockSearch),
		funds:    new(MockFundamentals),
		reasoner: new(MockReasoner),
		sink:     &recordingSink{},
		cache:    store,
	}
	g, err := workflow.NewAdvisorGraph(workflow.Deps{
		Search:       h.search,
		Fundamentals: h.funds,
		Cache:        store,
		Reasoner:     h.reasoner,
		Guardrail:    guardrail.NewPolicy(h.sink),
	})
	require.NoError(t, err)
	h.coord = NewCoordinator(workflow.NewExecutor(g), WithIDGenerator(func() string { return "run-fixed" }))
	return h
}

var news = []types.NewsItem{{Title: "Earnings", URL: "https://n.example/e", Content: "beat"}}

func TestCoordinator_KOPassesThrough(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, "Recent news about KO stock", 10).Return(news, nil)
	h.funds.On("Fetch", mock.Anything, "KO").Return(
		`{"Symbol":"KO","Description":"Beverages.","Sector":"CONSUMER STAPLES","Industry":"BEVERAGES","Beta":"0.6"}`, nil).Once()
	h.reasoner.On("Summarize", mock.Anything, "KO", news).Return(types.NewsSummary{
		Summary: "Solid earnings.", Sources: []types.Source{{Title: "Earnings", URL: "https://n.example/e"}},
	}, nil)
	h.reasoner.On("Recommend", mock.Anything, mock.MatchedBy(func(in types.RecommendInput) bool {
		return in.Ticker == "KO" && in.Fundamentals.Beta != nil && *in.Fundamentals.Beta == 0.6 &&
			in.NewsSummary.Summary == "Solid earnings."
	})).Return(types.Recommendation{Action: types.ActionBuy, Reasoning: "Defensive dividend payer."}, nil)

	req, err := types.NewRequest("ko", "Low", "Long-term", "Beginner")
	require.NoError(t, err)
	res, err := h.coord.Evaluate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "run-fixed", res.RunID)
	assert.Equal(t, types.ActionBuy, res.Action)
	assert.Equal(t, "Defensive dividend payer.", res.Reasoning)
	assert.Nil(t, res.Override)
	assert.Equal(t, types.ActionBuy, res.EffectiveAction())
	require.Len(t, res.Sources, 1)

	require.Len(t, h.sink.records, 1)
	assert.False(t, h.sink.records[0].Triggered)
	assert.Equal(t, "run-fixed", h.sink.records[0].RunID)

	// second run is served from the cache
	_, err = h.coord.Evaluate(context.Background(), req)
	require.NoError(t, err)
	h.funds.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCoordinator_NVDAIsOverridden(t *testing.T) {
	h := newHarness(t)
	h.search.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(news, nil)
	h.funds.On("Fetch", mock.Anything, "NVDA").Return(
		`{"Symbol":"NVDA","Description":"GPUs.","Sector":"TECHNOLOGY","Industry":"SEMICONDUCTORS","Beta":"1.7","PERatio":"None"}`, nil)
	h.reasoner.On("Summarize", mock.Anything, "NVDA", mock.Anything).Return(types.NewsSummary{Summary: "AI boom."}, nil)
	h.reasoner.On("Recommend", mock.Anything, mock.Anything).Return(types.Recommendation{Action: types.ActionBuy, Reasoning: "Growth."}, nil)

	req, err := types.NewRequest("NVDA", "Low", "Long-term", "")
	require.NoError(t, err)
	res, err := h.coord.Evaluate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.ActionBuy, res.Action)
	require.NotNil(t, res.Override)
	assert.Equal(t, types.ActionNotBuy, res.Override.Action)
	assert.Equal(t, guardrail.ReasonHighBeta, res.Override.Reasoning)
	assert.Equal(t, types.ActionNotBuy, res.EffectiveAction())

	require.Len(t, h.sink.records, 1)
	assert.True(t, h.sink.records[0].Triggered)
}

func TestCoordinator_FailureIsRunError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("tavily down")
	h.search.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)
	h.funds.On("Fetch", mock.Anything, mock.Anything).Return(
		`{"Description":"d","Sector":"s","Industry":"i"}`, nil).Maybe()

	req, err := types.NewRequest("AAPL", "Medium", "Short-term", "")
	require.NoError(t, err)
	_, err = h.coord.Evaluate(context.Background(), req)
	require.Error(t, err)

	var rerr *RunError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "run-fixed", rerr.RunID)
	assert.Equal(t, workflow.NodeFetchNews, rerr.Node)
	assert.ErrorIs(t, err, boom)
	h.reasoner.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, h.sink.records)
}

type stubRunner struct {
	out workflow.RunState
	err error
}

func (s stubRunner) Run(context.Context, workflow.RunState) (workflow.RunState, error) {
	return s.out, s.err
}

func TestCoordinator_IncompleteRunIsRunError(t *testing.T) {
	c := NewCoordinator(stubRunner{}, WithRunTimeout(0))
	_, err := c.Evaluate(context.Background(), types.Request{Ticker: "X"})
	var rerr *RunError
	require.True(t, errors.As(err, &rerr))
	assert.Empty(t, rerr.Node)
	assert.NotEmpty(t, rerr.RunID)
}
