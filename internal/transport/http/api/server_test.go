package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/audit"
	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/types"
	"stockadvisor/internal/workflow"
)

type MockEvaluator struct{ mock.Mock }

func (m *MockEvaluator) Evaluate(ctx context.Context, req types.Request) (advisor.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(advisor.Result), args.Error(1)
}

type MockAudit struct{ mock.Mock }

func (m *MockAudit) Recent(ctx context.Context, q audit.Query) ([]guardrail.Record, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]guardrail.Record), args.Error(1)
}

func newTestServer(t *testing.T, eval Evaluator, rd AuditReader) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Advisor: eval, Audit: rd, CORSOrigins: []string{"*"}})
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, new(MockEvaluator), nil)
	for _, path := range []string{"/", "/healthz"} {
		rec := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestGenerateStrategy_OK(t *testing.T) {
	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, types.Request{
		Ticker: "KO", RiskAppetite: types.RiskLow, TimeHorizon: types.HorizonLong, Experience: types.ExperienceBeginner,
	}).Return(advisor.Result{
		RunID: "run-1", Ticker: "KO", Action: types.ActionBuy, Reasoning: "Stable.",
		Sources: []types.Source{{Title: "t", URL: "u"}},
	}, nil)

	h := newTestServer(t, eval, nil)
	rec := do(h, http.MethodPost, "/generate-strategy",
		`{"ticker_symbol":"ko","risk_appetite":"Low","time_horizon":"Long-term","investment_experience":"Beginner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp StrategyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.ActionBuy, resp.SuggestedAction)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Nil(t, resp.GuardrailOverride)
	assert.Len(t, resp.Sources, 1)
}

func TestGenerateStrategy_GuardrailOverrideIsConflict(t *testing.T) {
	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(advisor.Result{
		RunID: "run-2", Action: types.ActionBuy, Reasoning: "Growth.",
		Override: &advisor.Override{Action: types.ActionNotBuy, Reasoning: guardrail.ReasonHighBeta},
	}, nil)

	rec := do(newTestServer(t, eval, nil), http.MethodPost, "/generate-strategy",
		`{"ticker_symbol":"NVDA","risk_appetite":"Low","time_horizon":"Long-term"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp StrategyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.ActionBuy, resp.SuggestedAction)
	require.NotNil(t, resp.GuardrailOverride)
	assert.Equal(t, types.ActionNotBuy, resp.GuardrailOverride.SuggestedAction)
	assert.Equal(t, guardrail.ReasonHighBeta, resp.GuardrailOverride.Reasoning)
}

func TestGenerateStrategy_ValidationErrors(t *testing.T) {
	eval := new(MockEvaluator)
	h := newTestServer(t, eval, nil)
	bodies := []string{
		`{}`,
		`not json`,
		`{"ticker_symbol":"KO","risk_appetite":"Extreme","time_horizon":"Long-term"}`,
		`{"ticker_symbol":"KO","risk_appetite":"Low","time_horizon":"Forever"}`,
		`{"ticker_symbol":"  ","risk_appetite":"Low","time_horizon":"Long-term"}`,
		`{"ticker_symbol":"KO","risk_appetite":"Low","time_horizon":"Long-term","investment_experience":"Guru"}`,
	}
	for _, body := range bodies {
		rec := do(h, http.MethodPost, "/generate-strategy", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	eval.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

func TestGenerateStrategy_RunFailureIsBadGateway(t *testing.T) {
	eval := new(MockEvaluator)
	eval.On("Evaluate", mock.Anything, mock.Anything).Return(advisor.Result{}, &advisor.RunError{
		RunID: "run-3", Node: workflow.NodeFetchFundamentals, Err: errors.New("alphavantage overview: rate limited"),
	})

	rec := do(newTestServer(t, eval, nil), http.MethodPost, "/generate-strategy",
		`{"ticker_symbol":"KO","risk_appetite":"Low","time_horizon":"Long-term"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-3", resp.RunID)
	assert.Equal(t, "fetch_fundamentals", resp.Node)
	assert.Contains(t, resp.Error, "rate limited")
	assert.NotContains(t, rec.Body.String(), "suggested_action")
}

func TestCORSPreflight(t *testing.T) {
	rec := do(newTestServer(t, new(MockEvaluator), nil), http.MethodOptions, "/generate-strategy", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListAudit(t *testing.T) {
	rd := new(MockAudit)
	beta := 1.7
	rd.On("Recent", mock.Anything, audit.Query{Ticker: "NVDA", TriggeredOnly: true, Limit: 5}).Return([]guardrail.Record{{
		RunID: "r", Ticker: "NVDA", RiskAppetite: types.RiskLow, Beta: &beta,
		ProposedAction: types.ActionBuy, EffectiveAction: types.ActionNotBuy, Triggered: true,
		Reason: guardrail.ReasonHighBeta, EvaluatedAt: time.Unix(0, 0).UTC(),
	}}, nil)

	h := newTestServer(t, new(MockEvaluator), rd)
	rec := do(h, http.MethodGet, "/api/guardrail/audit?ticker=NVDA&triggered=true&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"effective_action":"Not Buy"`)

	rec = do(h, http.MethodGet, "/api/guardrail/audit?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAudit_NotMountedWithoutStore(t *testing.T) {
	rec := do(newTestServer(t, new(MockEvaluator), nil), http.MethodGet, "/api/guardrail/audit", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServer_RequiresAdvisor(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
