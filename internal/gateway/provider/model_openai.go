package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/logger"
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/v1/chat/completions）。

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIOptions struct {
	ID           string
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

type OpenAIChatClient struct {
	id          string
	model       string
	temperature float64
	maxRetries  int
	backoff     time.Duration
	http        *resty.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewOpenAIChatClient(opts OpenAIOptions) *OpenAIChatClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = "openai:" + opts.Model
	}
	client := resty.New().
		SetBaseURL(normalizeBaseURL(opts.BaseURL)).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	// 覆盖/补充自定义请求头（若配置中提供）
	for k, v := range opts.ExtraHeaders {
		client.SetHeader(k, v)
	}
	return &OpenAIChatClient{
		id:          id,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxRetries:  opts.MaxRetries,
		backoff:     800 * time.Millisecond,
		http:        client,
	}
}

// 规范化 BaseURL，避免用户把完整的 /chat/completions 也写进了配置导致重复路径
func normalizeBaseURL(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		url = defaultBaseURL
	}
	return strings.TrimSuffix(url, "/chat/completions")
}

func (c *OpenAIChatClient) ID() string { return c.id }

func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	body := chatRequest{Model: c.model, Temperature: c.temperature, MaxTokens: payload.MaxTokens}
	if strings.TrimSpace(payload.System) != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: payload.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: payload.User})
	if payload.ExpectJSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}
	if b, err := json.Marshal(body); err == nil {
		logger.LogLLMRequest(payload.RunID, c.id, payload.Purpose, payload.System, payload.User, string(b))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, wait, err := c.do(ctx, body)
		if err == nil {
			logger.LogLLMResponse(payload.RunID, c.id, payload.Purpose, out)
			return out, nil
		}
		lastErr = err
		var pe *gateway.ProviderError
		if !errors.As(err, &pe) || !pe.Retryable() || attempt == c.maxRetries {
			break
		}
		if wait == 0 {
			// 基本指数退避：0.8s, 1.6s, 3.2s ...
			wait = c.backoff << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		logger.Warnf("[AI] %s 第 %d 次调用失败，%s 后重试: %v", c.id, attempt+1, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", gateway.NewProviderError(c.id, "chat", 0, ctx.Err())
		case <-timer.C:
		}
	}
	return "", lastErr
}

func (c *OpenAIChatClient) do(ctx context.Context, body chatRequest) (string, time.Duration, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", 0, gateway.NewProviderError(c.id, "chat", 0, err)
	}
	if !resp.IsSuccess() {
		var bad chatError
		_ = json.Unmarshal(resp.Body(), &bad)
		msg := strings.TrimSpace(bad.Error.Message)
		if msg == "" {
			msg = resp.Status()
		}
		wait := time.Duration(0)
		if resp.StatusCode() == http.StatusTooManyRequests {
			if secs, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		return "", wait, gateway.NewProviderError(c.id, "chat", resp.StatusCode(), errors.New(msg))
	}
	var ok chatResponse
	if err := json.Unmarshal(resp.Body(), &ok); err != nil {
		return "", 0, gateway.NewProviderError(c.id, "chat", resp.StatusCode(), fmt.Errorf("decode response: %w", err))
	}
	if len(ok.Choices) == 0 {
		return "", 0, gateway.NewProviderError(c.id, "chat", resp.StatusCode(), fmt.Errorf("empty choices"))
	}
	return ok.Choices[0].Message.Content, 0, nil
}
