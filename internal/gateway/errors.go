// Package gateway holds what the outbound adapters (search, fundamentals, LLM) share.
package gateway

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an upstream answer that has no data for the requested key.
var ErrNotFound = errors.New("not found")

// ProviderError 表示外部数据/模型服务调用失败。
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status=%d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the upstream status suggests a later retry could succeed.
func (e *ProviderError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Status == 429 || e.Status >= 500
}

func NewProviderError(provider, op string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Status: status, Err: err}
}

// IsProviderError reports whether err wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
