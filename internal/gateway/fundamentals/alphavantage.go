// Package fundamentals 从 Alpha Vantage OVERVIEW 接口拉取公司基本面原始文档。
package fundamentals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/logger"
	"stockadvisor/internal/pkg/circuit"
)

const (
	providerName   = "alphavantage"
	defaultBaseURL = "https://www.alphavantage.co"
)

// ErrRateLimited is returned when the upstream answers with a throttling notice instead of data.
var ErrRateLimited = errors.New("rate limited")

type Options struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	BreakerFailures int
	BreakerCooldown time.Duration
}

type AlphaVantageClient struct {
	apiKey  string
	http    *resty.Client
	breaker *circuit.CircuitBreaker
}

func NewAlphaVantageClient(opts Options) *AlphaVantageClient {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout)
	if opts.MaxRetries > 0 {
		client.SetRetryCount(opts.MaxRetries).
			SetRetryWaitTime(time.Second).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err == nil && r.StatusCode() >= 500
			})
	}
	breaker := circuit.NewCircuitBreaker(providerName, opts.BreakerFailures, opts.BreakerCooldown)
	breaker.SetStateChangeHandler(logBreakerChange)
	return &AlphaVantageClient{
		apiKey:  opts.APIKey,
		http:    client,
		breaker: breaker,
	}
}

func logBreakerChange(name string, from, to circuit.State) {
	l := logger.With("provider", name, "from", from.String(), "to", to.String())
	if to == circuit.StateOpen {
		l.Warn("circuit breaker opened, upstream calls short-circuited")
		return
	}
	l.Info("circuit breaker state change")
}

// Fetch returns the raw OVERVIEW document for ticker.
// An empty document (unknown symbol) is reported as gateway.ErrNotFound.
func (c *AlphaVantageClient) Fetch(ctx context.Context, ticker string) (json.RawMessage, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, gateway.NewProviderError(providerName, "overview", 0, fmt.Errorf("empty ticker"))
	}
	var out json.RawMessage
	err := c.breaker.Do(func() error {
		var ferr error
		out, ferr = c.fetch(ctx, symbol)
		return ferr
	}, func(err error) bool {
		return !errors.Is(err, gateway.ErrNotFound) && !errors.Is(err, context.Canceled)
	})
	if err != nil {
		if gateway.IsProviderError(err) {
			return nil, err
		}
		return nil, gateway.NewProviderError(providerName, "overview", 0, err)
	}
	return out, nil
}

func (c *AlphaVantageClient) fetch(ctx context.Context, symbol string) (json.RawMessage, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "OVERVIEW",
			"symbol":   symbol,
			"apikey":   c.apiKey,
		}).
		Get("/query")
	if err != nil {
		return nil, gateway.NewProviderError(providerName, "overview", 0, err)
	}
	if !resp.IsSuccess() {
		return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), errors.New(resp.Status()))
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), fmt.Errorf("invalid json body"))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), fmt.Errorf("unexpected document type"))
	}
	// 免费额度触发限流时返回 200 + Note/Information，而不是数据
	for _, key := range []string{"Note", "Information"} {
		if msg := doc.Get(key); msg.Exists() {
			logger.Warnf("alphavantage: %s throttled: %s", symbol, msg.String())
			return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), fmt.Errorf("%w: %s", ErrRateLimited, msg.String()))
		}
	}
	if msg := doc.Get("Error Message"); msg.Exists() {
		return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), errors.New(msg.String()))
	}
	if !doc.Get("Symbol").Exists() && len(doc.Map()) == 0 {
		return nil, gateway.NewProviderError(providerName, "overview", resp.StatusCode(), fmt.Errorf("%s: %w", symbol, gateway.ErrNotFound))
	}
	return json.RawMessage(body), nil
}
