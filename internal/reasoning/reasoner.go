// Package reasoning 把新闻摘要与投资建议委托给 LLM，并校验其结构化输出。
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/gateway/provider"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/pkg/jsonutil"
	"stockadvisor/internal/prompt"
	"stockadvisor/internal/types"
)

// ErrMalformedOutput is wrapped when the model answer does not match the expected JSON shape.
var ErrMalformedOutput = errors.New("malformed model output")

type Reasoner struct {
	model   provider.ModelProvider
	prompts *prompt.Registry

	summary        *jsonschema.Schema
	recommendation *jsonschema.Schema
}

func NewReasoner(model provider.ModelProvider, prompts *prompt.Registry) (*Reasoner, error) {
	if model == nil {
		return nil, fmt.Errorf("reasoning: model provider is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("reasoning: prompt registry is required")
	}
	summary, err := compileSchema("mem://summary.json", summarySchema)
	if err != nil {
		return nil, fmt.Errorf("compile summary schema: %w", err)
	}
	rec, err := compileSchema("mem://recommendation.json", recommendationSchema)
	if err != nil {
		return nil, fmt.Errorf("compile recommendation schema: %w", err)
	}
	return &Reasoner{model: model, prompts: prompts, summary: summary, recommendation: rec}, nil
}

// Summarize condenses items into a summary with ordered sources. Zero items is allowed.
func (r *Reasoner) Summarize(ctx context.Context, ticker string, items []types.NewsItem) (types.NewsSummary, error) {
	system, user, err := r.prompts.Summarize(prompt.SummarizeData{Ticker: ticker, Items: items})
	if err != nil {
		return types.NewsSummary{}, err
	}
	raw, err := r.call(ctx, "summarize", system, user)
	if err != nil {
		return types.NewsSummary{}, err
	}
	doc, err := r.decode("summarize", raw, r.summary)
	if err != nil {
		return types.NewsSummary{}, err
	}

	out := types.NewsSummary{
		Summary: strings.TrimSpace(doc.Get("summary").String()),
		Sources: make([]types.Source, 0),
	}
	doc.Get("sources").ForEach(func(_, v gjson.Result) bool {
		url := strings.TrimSpace(v.Get("url").String())
		if url != "" {
			out.Sources = append(out.Sources, types.Source{Title: strings.TrimSpace(v.Get("title").String()), URL: url})
		}
		return true
	})
	return out, nil
}

// Recommend asks the model for one action and its reasoning. No business rule is applied here.
func (r *Reasoner) Recommend(ctx context.Context, in types.RecommendInput) (types.Recommendation, error) {
	system, user, err := r.prompts.Recommend(prompt.RecommendData{
		Ticker:       in.Ticker,
		RiskAppetite: in.RiskAppetite,
		TimeHorizon:  in.TimeHorizon,
		Experience:   in.Experience,
		Fundamentals: in.Fundamentals,
		NewsSummary:  in.NewsSummary.Summary,
	})
	if err != nil {
		return types.Recommendation{}, err
	}
	raw, err := r.call(ctx, "recommend", system, user)
	if err != nil {
		return types.Recommendation{}, err
	}
	doc, err := r.decode("recommend", raw, r.recommendation)
	if err != nil {
		return types.Recommendation{}, err
	}
	action, err := types.ParseAction(doc.Get("action").String())
	if err != nil {
		return types.Recommendation{}, r.malformed("recommend", err)
	}
	return types.Recommendation{Action: action, Reasoning: strings.TrimSpace(doc.Get("reasoning").String())}, nil
}

func (r *Reasoner) call(ctx context.Context, purpose, system, user string) (string, error) {
	raw, err := r.model.Call(ctx, provider.ChatPayload{
		System:     system,
		User:       user,
		ExpectJSON: true,
		RunID:      types.RunIDFrom(ctx),
		Purpose:    purpose,
	})
	if err != nil {
		if gateway.IsProviderError(err) {
			return "", err
		}
		return "", gateway.NewProviderError(r.model.ID(), purpose, 0, err)
	}
	return raw, nil
}

// malformed 把无法使用的模型输出归类为 ProviderError，仍可用 errors.Is 匹配 ErrMalformedOutput。
func (r *Reasoner) malformed(purpose string, cause error) error {
	return gateway.NewProviderError(r.model.ID(), purpose, 0, fmt.Errorf("%w: %v", ErrMalformedOutput, cause))
}

func (r *Reasoner) decode(purpose, raw string, schema *jsonschema.Schema) (gjson.Result, error) {
	var v any
	normalized, err := jsonutil.DecodeObject(raw, &v)
	if err != nil {
		logger.Warnf("reasoning: cannot decode %s output: %v", purpose, err)
		return gjson.Result{}, r.malformed(purpose, err)
	}
	if err := schema.Validate(v); err != nil {
		return gjson.Result{}, r.malformed(purpose, err)
	}
	if !gjson.Valid(normalized) {
		b, _ := json.Marshal(v)
		normalized = string(b)
	}
	return gjson.Parse(normalized), nil
}
