package outreach

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/logger"
)

// StepLogger emits per-step structured logs to both the console and the
// campaign log table, giving operators a live view of a send in progress.
// Persistence is best-effort: a failed insert is itself logged and dropped.
type StepLogger struct {
	logs LogRepository
}

// NewStepLogger creates a step logger backed by the given log repository.
// A nil repository degrades to console-only logging.
func NewStepLogger(logs LogRepository) *StepLogger {
	return &StepLogger{logs: logs}
}

// Info logs an informational step.
func (sl *StepLogger) Info(ctx context.Context, campaignID, step, msg string, payload map[string]any) {
	sl.log(ctx, campaignID, "info", step, msg, payload)
}

// Warn logs a non-fatal anomaly.
func (sl *StepLogger) Warn(ctx context.Context, campaignID, step, msg string, payload map[string]any) {
	sl.log(ctx, campaignID, "warn", step, msg, payload)
}

// Error logs a step failure.
func (sl *StepLogger) Error(ctx context.Context, campaignID, step, msg string, payload map[string]any) {
	sl.log(ctx, campaignID, "error", step, msg, payload)
}

func (sl *StepLogger) log(ctx context.Context, campaignID, level, step, msg string, payload map[string]any) {
	fields := []interface{}{"campaign_id", campaignID, "step", step}
	for k, v := range payload {
		fields = append(fields, k, v)
	}
	switch level {
	case "error":
		logger.Error(msg, fields...)
	case "warn":
		logger.Warn(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}

	if sl.logs == nil {
		return
	}

	var payloadJSON string
	if len(payload) > 0 {
		if data, err := json.Marshal(payload); err == nil {
			payloadJSON = string(data)
		}
	}

	entry := &domain.CampaignLogEntry{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Level:      level,
		Step:       step,
		Message:    msg,
		Payload:    payloadJSON,
	}
	if err := sl.logs.Insert(ctx, entry); err != nil {
		logger.Warn("campaign log insert failed", "campaign_id", campaignID, "step", step, "error", err)
	}
}
