package api

import (
	"time"

	"stockadvisor/internal/types"
)

// StrategyRequest is the body of POST /generate-strategy.
type StrategyRequest struct {
	TickerSymbol         string `json:"ticker_symbol" binding:"required"`
	RiskAppetite         string `json:"risk_appetite" binding:"required"`
	TimeHorizon          string `json:"time_horizon" binding:"required"`
	InvestmentExperience string `json:"investment_experience"`
}

type OverridePayload struct {
	SuggestedAction types.Action `json:"suggested_action"`
	Reasoning       string       `json:"reasoning"`
}

// StrategyResponse keeps the model's answer and, when the guardrail fired, the override next to it.
type StrategyResponse struct {
	SuggestedAction   types.Action     `json:"suggested_action"`
	Reasoning         string           `json:"reasoning"`
	Sources           []types.Source   `json:"sources,omitempty"`
	GuardrailOverride *OverridePayload `json:"guardrail_override,omitempty"`
	RunID             string           `json:"run_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
	Node  string `json:"node,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AuditEntry struct {
	RunID           string             `json:"run_id"`
	Ticker          string             `json:"ticker"`
	RiskAppetite    types.RiskAppetite `json:"risk_appetite"`
	Beta            *float64           `json:"beta,omitempty"`
	ProposedAction  types.Action       `json:"proposed_action"`
	EffectiveAction types.Action       `json:"effective_action"`
	Triggered       bool               `json:"triggered"`
	Reason          string             `json:"reason,omitempty"`
	EvaluatedAt     time.Time          `json:"evaluated_at"`
}
