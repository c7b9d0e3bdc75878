package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/types"
)

type fakeSearch struct {
	items []types.NewsItem
	err   error
	delay time.Duration
	calls atomic.Int32
	query atomic.Value
}

func (f *fakeSearch) Search(ctx context.Context, query string, max int) ([]types.NewsItem, error) {
	f.calls.Add(1)
	f.query.Store(query)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeFundamentals struct {
	raw   string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeFundamentals) Fetch(ctx context.Context, ticker string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

type fakeReasoner struct {
	summary       types.NewsSummary
	rec           types.Recommendation
	summarizeErr  error
	summarizeHits atomic.Int32
	recommendHits atomic.Int32

	mu       sync.Mutex
	lastIn   types.RecommendInput
	gotItems []types.NewsItem
}

func (f *fakeReasoner) Summarize(_ context.Context, _ string, items []types.NewsItem) (types.NewsSummary, error) {
	f.summarizeHits.Add(1)
	f.mu.Lock()
	f.gotItems = items
	f.mu.Unlock()
	if f.summarizeErr != nil {
		return types.NewsSummary{}, f.summarizeErr
	}
	return f.summary, nil
}

func (f *fakeReasoner) Recommend(_ context.Context, in types.RecommendInput) (types.Recommendation, error) {
	f.recommendHits.Add(1)
	f.mu.Lock()
	f.lastIn = in
	f.mu.Unlock()
	return f.rec, nil
}

type fakeGuardrail struct {
	hits atomic.Int32
}

func (f *fakeGuardrail) Evaluate(_ context.Context, in guardrail.Input) types.GuardrailOutcome {
	f.hits.Add(1)
	return guardrail.Evaluate(in)
}

type memCache struct {
	mu      sync.Mutex
	data    map[string]json.RawMessage
	deletes int
}

func newMemCache() *memCache { return &memCache{data: map[string]json.RawMessage{}} }

func (m *memCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = payload
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	m.deletes++
	return ok, nil
}
