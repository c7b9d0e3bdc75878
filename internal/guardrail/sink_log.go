package guardrail

import (
	"context"
	"strconv"

	"stockadvisor/internal/logger"
)

// LogSink writes audit records to the process logger.
type LogSink struct{}

func (LogSink) Record(_ context.Context, rec Record) error {
	beta := "absent"
	if rec.Beta != nil {
		beta = strconv.FormatFloat(*rec.Beta, 'f', -1, 64)
	}
	if rec.Triggered {
		logger.Warnf("[guardrail] run=%s ticker=%s risk=%s beta=%s triggered: %s -> %s (%s)",
			rec.RunID, rec.Ticker, rec.RiskAppetite, beta, rec.ProposedAction, rec.EffectiveAction, rec.Reason)
		return nil
	}
	logger.Infof("[guardrail] run=%s ticker=%s risk=%s beta=%s passed action=%s",
		rec.RunID, rec.Ticker, rec.RiskAppetite, beta, rec.EffectiveAction)
	return nil
}
