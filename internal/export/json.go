package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// TraceExport is the top-level JSON export of one pipeline run.
type TraceExport struct {
	Query      string           `json:"query"`
	ExportedAt string           `json:"exportedAt"`
	Fallback   bool             `json:"fallback,omitempty"`
	DurationMs int64            `json:"durationMs"`
	Subqueries []SubqueryExport `json:"subqueries"`
	Answer     string           `json:"answer"`
}

// SubqueryExport describes one sub-query and its outcome.
type SubqueryExport struct {
	Index      int    `json:"index"`
	Subquery   string `json:"subquery"`
	Strategy   string `json:"strategy"`
	Status     string `json:"status"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// ExportTrace builds a TraceExport from a trace. Routes without a result,
// as produced by a route-only run, are exported with status "routed".
func ExportTrace(t *orchestrator.Trace) *TraceExport {
	export := &TraceExport{
		Query:      t.Query,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Fallback:   t.Fallback,
		DurationMs: t.Duration.Milliseconds(),
		Subqueries: make([]SubqueryExport, 0, len(t.Routes)),
		Answer:     t.Answer,
	}

	for i, r := range t.Routes {
		se := SubqueryExport{
			Index:    i,
			Subquery: r.Subquery,
			Strategy: string(r.Strategy),
			Status:   "routed",
		}
		if i < len(t.Results) {
			res := t.Results[i]
			se.Result = res.Result
			se.DurationMs = res.Duration.Milliseconds()
			se.Status = "ok"
			if res.Err != nil {
				se.Status = "failed"
				se.Error = res.Err.Error()
			}
		}
		export.Subqueries = append(export.Subqueries, se)
	}
	return export
}

// WriteJSON writes the indented JSON export of t to w.
func WriteJSON(w io.Writer, t *orchestrator.Trace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(ExportTrace(t))
}
