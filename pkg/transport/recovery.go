package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/consensus/pkg/api"
)

// Recovery returns middleware that turns a panic in the analyzer into a
// server error, so one bad request cannot take the process down.
func Recovery() Middleware {
	return func(next Analyzer) Analyzer {
		return AnalyzerFunc(func(ctx context.Context, req *AnalyzeRequest) (res *api.AnalysisResult, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("analyzer panicked", "domain", req.Domain, "analysis_id", req.ID, "panic", fmt.Sprint(r))
					res = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Analyze(ctx, req)
		})
	}
}
