package fundamentals

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockadvisor/internal/gateway"
	"stockadvisor/internal/pkg/circuit"
)

const koOverview = `{"Symbol":"KO","Description":"The Coca-Cola Company is a beverage company.","Sector":"CONSUMER STAPLES","Industry":"BEVERAGES","Beta":"0.6","PERatio":"24.1","PEGRatio":"None"}`

func TestAlphaVantageClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "OVERVIEW", q.Get("function"))
		assert.Equal(t, "KO", q.Get("symbol"))
		assert.Equal(t, "av-key", q.Get("apikey"))
		_, _ = w.Write([]byte(koOverview))
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(Options{BaseURL: srv.URL, APIKey: "av-key"})
	raw, err := c.Fetch(context.Background(), " ko ")
	require.NoError(t, err)
	assert.JSONEq(t, koOverview, string(raw))
}

func TestAlphaVantageClient_RateLimitNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}))
	defer srv.Close()

	_, err := NewAlphaVantageClient(Options{BaseURL: srv.URL}).Fetch(context.Background(), "KO")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, gateway.IsProviderError(err))
}

func TestAlphaVantageClient_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(Options{BaseURL: srv.URL, BreakerFailures: 1, BreakerCooldown: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), "ZZZZ")
		assert.ErrorIs(t, err, gateway.ErrNotFound)
	}
	assert.Equal(t, circuit.StateClosed, c.breaker.State())
}

func TestAlphaVantageClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(Options{BaseURL: srv.URL, BreakerFailures: 2, BreakerCooldown: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), "KO")
		require.Error(t, err)
	}
	_, err := c.Fetch(context.Background(), "KO")
	assert.True(t, errors.Is(err, circuit.ErrOpen))
	assert.True(t, gateway.IsProviderError(err))
	assert.Equal(t, int32(2), calls.Load())
}
