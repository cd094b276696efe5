package results

import (
	"time"
)

// RunReport describes one invocation across all configured competitors.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Tables     []*Table
	// Errors holds competitors whose run ended with an error, keyed by competitor id.
	Errors map[string]error
}

// Summaries returns one summary per finished table, in run order.
func (r *RunReport) Summaries() []Summary {
	out := make([]Summary, 0, len(r.Tables))
	for _, t := range r.Tables {
		out = append(out, t.Summary())
	}
	return out
}

// Totals sums every table in the report.
func (r *RunReport) Totals() Summary {
	total := Summary{Competitor: "all", ByKind: make(map[FailureKind]int), Duration: r.FinishedAt.Sub(r.StartedAt)}
	for _, s := range r.Summaries() {
		total.Total += s.Total
		total.Succeeded += s.Succeeded
		total.Failed += s.Failed
		for k, v := range s.ByKind {
			total.ByKind[k] += v
		}
	}
	return total
}
