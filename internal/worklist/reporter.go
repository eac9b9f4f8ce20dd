package worklist

import (
	"context"
	"log/slog"

	"github.com/nhle/worklist/internal/source"
)

// Reporter receives per-source fetch failures. Implementations must be
// safe for concurrent use.
type Reporter interface {
	ReportFailure(ctx context.Context, runID string, failure SourceFailure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, runID string, failure SourceFailure)

// ReportFailure calls f.
func (f ReporterFunc) ReportFailure(ctx context.Context, runID string, failure SourceFailure) {
	f(ctx, runID, failure)
}

// LogReporter logs failures at WARN.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter writing to logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "worklist")}
}

// ReportFailure logs the failure with its error kind, and the retry hint
// when the source is throttling.
func (r *LogReporter) ReportFailure(ctx context.Context, runID string, failure SourceFailure) {
	attrs := []any{
		"run_id", runID,
		"source", failure.Source,
		"kind", source.KindOf(failure.Err).String(),
		"error", failure.Err,
	}
	if source.IsAuthError(failure.Err) {
		attrs = append(attrs, "reauth_required", true)
	}
	if after := source.RetryAfterOf(failure.Err); after > 0 {
		attrs = append(attrs, "retry_after", after)
	}
	r.logger.WarnContext(ctx, "source fetch failed", attrs...)
}
