package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Grawler/internal/ports"
)

const notifyTimeout = 10 * time.Second

// Reporter implements ports.Telemetry on top of slog, Prometheus and an optional notifier.
type Reporter struct {
	logger   *slog.Logger
	metrics  *Metrics
	notifier ports.Notifier
}

var _ ports.Telemetry = (*Reporter)(nil)

// NewReporter wires the sink. metrics and notifier may be nil.
func NewReporter(logger *slog.Logger, metrics *Metrics, notifier ports.Notifier) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, metrics: metrics, notifier: notifier}
}

// Capture records a per-item failure.
func (r *Reporter) Capture(ctx context.Context, stage string, err error, attrs ...any) {
	if err == nil {
		return
	}
	r.metrics.errorReported(stage, "item")
	args := append([]any{"stage", stage, "error", err}, attrs...)
	r.logger.ErrorContext(ctx, "item failed", args...)
}

// Fatal records an error that aborted a stage and forwards it to the notifier.
func (r *Reporter) Fatal(ctx context.Context, stage string, err error) {
	if err == nil {
		return
	}
	r.metrics.errorReported(stage, "fatal")
	r.logger.ErrorContext(ctx, "stage aborted", "stage", stage, "error", err)

	if r.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	msg := fmt.Sprintf("grawler: stage %s aborted: %v", stage, err)
	if nErr := r.notifier.Publish(notifyCtx, msg); nErr != nil {
		r.logger.Warn("notify fatal error", "stage", stage, "error", nErr)
	}
}
