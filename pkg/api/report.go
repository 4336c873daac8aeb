package api

// Report is the stored record of one analysis, as returned by the HTTP
// surface. Result is set once the analysis completed; Error once it failed.
type Report struct {
	ID          string          `json:"id"`
	Object      string          `json:"object"`
	Tenant      string          `json:"tenant,omitempty"`
	Domain      string          `json:"domain"`
	State       PipelineState   `json:"state"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       *APIError       `json:"error,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	CompletedAt int64           `json:"completed_at,omitempty"`
}

// ReportObject is the Object value of every Report.
const ReportObject = "analysis"

// NewReport creates a report for an analysis that has not started yet.
func NewReport(id, domain string, createdAt int64) *Report {
	return &Report{
		ID:        id,
		Object:    ReportObject,
		Domain:    domain,
		State:     StateIdle,
		CreatedAt: createdAt,
	}
}

// Finish records the outcome of the analysis on the report. A nil err
// requires a non-nil result.
func (r *Report) Finish(result *AnalysisResult, err error, completedAt int64) {
	r.CompletedAt = completedAt
	if err != nil {
		r.State = StateFailed
		r.Result = nil
		r.Error = ToAPIError(err)
		return
	}
	r.State = StateCompleted
	r.Result = result
	r.Error = nil
}

// DomainInfo describes an analysis domain served by this process.
type DomainInfo struct {
	Domain      string `json:"domain"`
	Description string `json:"description,omitempty"`
}
