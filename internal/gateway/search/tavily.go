// Package search 封装新闻检索服务（Tavily /search）。
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/pkg/text"
	"stockadvisor/internal/types"
)

const (
	providerName      = "tavily"
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 10
	maxContentRunes   = 4000
)

type Options struct {
	BaseURL           string
	APIKey            string
	SearchDepth       string
	Topic             string
	IncludeRawContent bool
	Timeout           time.Duration
	MaxRetries        int
}

type TavilyClient struct {
	opts Options
	http *resty.Client
}

type searchRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	Topic             string `json:"topic,omitempty"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
}

type searchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

func NewTavilyClient(opts Options) *TavilyClient {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	if opts.MaxRetries > 0 {
		client.SetRetryCount(opts.MaxRetries).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			})
	}
	return &TavilyClient{opts: opts, http: client}
}

// Search returns at most maxResults items in provider order.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]types.NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, gateway.NewProviderError(providerName, "search", 0, fmt.Errorf("empty query"))
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	body := searchRequest{
		APIKey:            c.opts.APIKey,
		Query:             query,
		SearchDepth:       c.opts.SearchDepth,
		Topic:             c.opts.Topic,
		MaxResults:        maxResults,
		IncludeRawContent: c.opts.IncludeRawContent,
	}
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/search")
	if err != nil {
		return nil, gateway.NewProviderError(providerName, "search", 0, err)
	}
	if !resp.IsSuccess() {
		return nil, gateway.NewProviderError(providerName, "search", resp.StatusCode(), errors.New(upstreamMessage(resp.Body(), resp.Status())))
	}
	var out searchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, gateway.NewProviderError(providerName, "search", resp.StatusCode(), fmt.Errorf("decode response: %w", err))
	}

	items := make([]types.NewsItem, 0, len(out.Results))
	for _, r := range out.Results {
		if len(items) == maxResults {
			break
		}
		content := strings.TrimSpace(r.Content)
		if content == "" {
			content = strings.TrimSpace(r.RawContent)
		}
		items = append(items, types.NewsItem{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Content: text.Truncate(content, maxContentRunes),
		})
	}
	logger.Debugf("tavily: query=%q results=%d", query, len(items))
	return items, nil
}

func upstreamMessage(body []byte, fallback string) string {
	var e struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		switch d := e.Detail.(type) {
		case string:
			return d
		case map[string]any:
			if msg, ok := d["error"].(string); ok {
				return msg
			}
		}
	}
	return fallback
}
