package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/audit"
	"stockadvisor/internal/types"
)

type handler struct {
	advisor Evaluator
	audit   AuditReader
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Message: "Stock advisor API is running"})
}

func (h *handler) generateStrategy(c *gin.Context) {
	var body StrategyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	req, err := types.NewRequest(body.TickerSymbol, body.RiskAppetite, body.TimeHorizon, body.InvestmentExperience)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.advisor.Evaluate(c.Request.Context(), req)
	if err != nil {
		out := ErrorResponse{Error: err.Error()}
		var rerr *advisor.RunError
		if errors.As(err, &rerr) {
			out.RunID = rerr.RunID
			out.Node = string(rerr.Node)
			if rerr.Err != nil {
				out.Error = rerr.Err.Error()
			}
		}
		c.JSON(http.StatusBadGateway, out)
		return
	}

	resp := StrategyResponse{
		SuggestedAction: res.Action,
		Reasoning:       res.Reasoning,
		Sources:         res.Sources,
		RunID:           res.RunID,
	}
	status := http.StatusOK
	if res.Override != nil {
		resp.GuardrailOverride = &OverridePayload{SuggestedAction: res.Override.Action, Reasoning: res.Override.Reasoning}
		status = http.StatusConflict
	}
	c.JSON(status, resp)
}

func (h *handler) listAudit(c *gin.Context) {
	q := audit.Query{Ticker: c.Query("ticker")}
	if v := c.Query("triggered"); v != "" {
		triggered, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "triggered must be a boolean"})
			return
		}
		q.TriggeredOnly = triggered
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		q.Limit = n
	}
	records, err := h.audit.Recent(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]AuditEntry, 0, len(records))
	for _, r := range records {
		out = append(out, AuditEntry{
			RunID:           r.RunID,
			Ticker:          r.Ticker,
			RiskAppetite:    r.RiskAppetite,
			Beta:            r.Beta,
			ProposedAction:  r.ProposedAction,
			EffectiveAction: r.EffectiveAction,
			Triggered:       r.Triggered,
			Reason:          r.Reason,
			EvaluatedAt:     r.EvaluatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}
