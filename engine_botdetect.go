package authcore

import (
	"context"
	"fmt"
	"strings"

	"github.com/zvincent07/authcore/botdetect"
	"github.com/zvincent07/authcore/internal/limiters"
)

// AnalyzeTelemetry scores a client interaction sample and, when the score reaches the
// configured threshold, bans the caller's IP with the triggering signals as evidence.
// The score and signals are returned either way so callers can log or step-challenge
// below the ban line.
func (e *Engine) AnalyzeTelemetry(ctx context.Context, sample botdetect.Telemetry) (botdetect.Result, error) {
	if err := e.ready(); err != nil {
		return botdetect.Result{}, err
	}
	result := botdetect.Analyze(sample)
	if !e.cfg.BotDetect.Enabled || result.Score < e.cfg.BotDetect.BanThreshold {
		return result, nil
	}

	ip := clientIPFromContext(ctx)
	if ip == "" {
		return result, nil
	}
	evidence := fmt.Sprintf("score %d: %s", result.Score, strings.Join(result.Signals, ", "))
	if err := e.bans.Ban(ctx, ip, limiters.BanReasonBot, evidence, e.cfg.BotDetect.BanDuration); err != nil {
		e.emitAudit(ctx, auditEventBotDetected, false, "", "", "", err, nil)
		return result, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricBotDetected)
	e.metricInc(MetricIPBanned)
	e.emitAudit(ctx, auditEventBotDetected, true, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"score":   fmt.Sprintf("%d", result.Score),
			"signals": strings.Join(result.Signals, ","),
		}
	})
	return result, nil
}
