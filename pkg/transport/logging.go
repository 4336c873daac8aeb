package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/consensus/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// analysis with the domain, analysis ID, request ID, duration and either
// the overall confidence or the error.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Analyzer) Analyzer {
		return AnalyzerFunc(func(ctx context.Context, req *AnalyzeRequest) (*api.AnalysisResult, error) {
			start := time.Now()
			res, err := next.Analyze(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("analysis_id", req.ID),
				slog.String("domain", req.Domain),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "analysis failed", attrs...)
				return res, err
			}
			attrs = append(attrs, slog.Float64("confidence", res.OverallConfidence))
			logger.LogAttrs(ctx, slog.LevelInfo, "analysis completed", attrs...)
			return res, nil
		})
	}
}
