package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
)

// DefaultMaxNewsResults caps the news search.
const DefaultMaxNewsResults = 10

type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.NewsItem, error)
}

type FundamentalsProvider interface {
	Fetch(ctx context.Context, ticker string) (json.RawMessage, error)
}

type ReasoningProvider interface {
	Summarize(ctx context.Context, ticker string, items []types.NewsItem) (types.NewsSummary, error)
	Recommend(ctx context.Context, in types.RecommendInput) (types.Recommendation, error)
}

// FundamentalsCache is the subset of the TTL cache the fundamentals node needs.
type FundamentalsCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, payload json.RawMessage) error
	Delete(ctx context.Context, key string) (bool, error)
}

type GuardrailPolicy interface {
	Evaluate(ctx context.Context, in guardrail.Input) types.GuardrailOutcome
}

// Deps wires the advisor graph to its collaborators. Cache may be nil.
type Deps struct {
	Search         SearchProvider
	Fundamentals   FundamentalsProvider
	Cache          FundamentalsCache
	Reasoner       ReasoningProvider
	Guardrail      GuardrailPolicy
	MaxNewsResults int
	NodeTimeout    time.Duration
}

// NewsQuery is the search query used for ticker.
func NewsQuery(ticker string) string {
	return fmt.Sprintf("Recent news about %s stock", ticker)
}

// NewAdvisorGraph declares the fixed evaluation graph:
//
//	start -> fetch_news -> summarize_news -\
//	start -> fetch_fundamentals ------------+-> recommend -> guardrail -> end
func NewAdvisorGraph(d Deps) (*Graph, error) {
	if d.Search == nil || d.Fundamentals == nil || d.Reasoner == nil || d.Guardrail == nil {
		return nil, fmt.Errorf("advisor graph: search, fundamentals, reasoner and guardrail are required")
	}
	if d.MaxNewsResults <= 0 {
		d.MaxNewsResults = DefaultMaxNewsResults
	}
	return NewGraph(
		Node{ID: NodeFetchNews, Writes: FieldNewsItems, Timeout: d.NodeTimeout, Run: fetchNews(d)},
		Node{ID: NodeFetchFundamentals, Writes: FieldFundamentals, Timeout: d.NodeTimeout, Run: fetchFundamentals(d)},
		Node{ID: NodeSummarizeNews, Deps: []NodeID{NodeFetchNews}, Writes: FieldNewsSummary, Timeout: d.NodeTimeout, Run: summarizeNews(d)},
		Node{ID: NodeRecommend, Deps: []NodeID{NodeSummarizeNews, NodeFetchFundamentals}, Writes: FieldRecommendation, Timeout: d.NodeTimeout, Run: recommend(d)},
		Node{ID: NodeGuardrail, Deps: []NodeID{NodeRecommend}, Writes: FieldGuardrail, Run: applyGuardrail(d)},
	)
}

func fetchNews(d Deps) NodeFunc {
	return func(ctx context.Context, st RunState) (Patch, error) {
		items, err := d.Search.Search(ctx, NewsQuery(st.Request.Ticker), d.MaxNewsResults)
		if err != nil {
			return Patch{}, err
		}
		if len(items) > d.MaxNewsResults {
			items = items[:d.MaxNewsResults]
		}
		if items == nil {
			items = []types.NewsItem{}
		}
		return Patch{NewsItems: &items}, nil
	}
}

func summarizeNews(d Deps) NodeFunc {
	return func(ctx context.Context, st RunState) (Patch, error) {
		summary, err := d.Reasoner.Summarize(ctx, st.Request.Ticker, st.NewsItems)
		if err != nil {
			return Patch{}, err
		}
		return Patch{NewsSummary: &summary}, nil
	}
}

func fetchFundamentals(d Deps) NodeFunc {
	return func(ctx context.Context, st RunState) (Patch, error) {
		f, err := loadFundamentals(ctx, d, st.RunID, st.Request.Ticker)
		if err != nil {
			return Patch{}, err
		}
		return Patch{Fundamentals: &f}, nil
	}
}

// loadFundamentals 先查缓存，未命中再调用上游并回写；缓存中不完整的条目会被剔除。
func loadFundamentals(ctx context.Context, d Deps, runID, ticker string) (types.Fundamentals, error) {
	if d.Cache != nil {
		raw, ok, err := d.Cache.Get(ctx, ticker)
		switch {
		case err != nil:
			logger.Warnf("[workflow] run=%s cache read %s failed, fetching upstream: %v", runID, ticker, err)
		case ok:
			f, perr := ParseFundamentals(raw)
			if perr == nil {
				logger.Debugf("[workflow] run=%s fundamentals cache hit %s", runID, ticker)
				return f, nil
			}
			logger.Warnf("[workflow] run=%s evicting cached fundamentals %s: %v", runID, ticker, perr)
			if _, derr := d.Cache.Delete(ctx, ticker); derr != nil {
				logger.Warnf("[workflow] run=%s evict %s failed: %v", runID, ticker, derr)
			}
		}
	}

	raw, err := d.Fundamentals.Fetch(ctx, ticker)
	if err != nil {
		return types.Fundamentals{}, err
	}
	f, err := ParseFundamentals(raw)
	if err != nil {
		return types.Fundamentals{}, gateway.NewProviderError("alphavantage", "overview", 0, err)
	}
	if d.Cache != nil {
		if err := d.Cache.Set(ctx, ticker, raw); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("[workflow] run=%s cache write %s failed: %v", runID, ticker, err)
		}
	}
	return f, nil
}

func recommend(d Deps) NodeFunc {
	return func(ctx context.Context, st RunState) (Patch, error) {
		rec, err := d.Reasoner.Recommend(ctx, types.RecommendInput{
			Ticker:       st.Request.Ticker,
			RiskAppetite: st.Request.RiskAppetite,
			TimeHorizon:  st.Request.TimeHorizon,
			Experience:   st.Request.Experience,
			Fundamentals: *st.Fundamentals,
			NewsSummary:  *st.NewsSummary,
		})
		if err != nil {
			return Patch{}, err
		}
		return Patch{Recommendation: &rec}, nil
	}
}

func applyGuardrail(d Deps) NodeFunc {
	return func(ctx context.Context, st RunState) (Patch, error) {
		outcome := d.Guardrail.Evaluate(ctx, guardrail.Input{
			RunID:          st.RunID,
			Ticker:         st.Request.Ticker,
			RiskAppetite:   st.Request.RiskAppetite,
			Beta:           st.Fundamentals.Beta,
			Recommendation: *st.Recommendation,
		})
		return Patch{Guardrail: &outcome}, nil
	}
}
