package domain

import "time"

// LogResult summarizes one output item inside a log entry. Exactly one field is set.
type LogResult struct {
	Records      *int `json:"records,omitempty"`
	AffectedRows *int `json:"affectedRows,omitempty"`
}

// RecordsResult builds a LogResult for a record set of n rows.
func RecordsResult(n int) LogResult {
	return LogResult{Records: &n}
}

// AffectedRowsResult builds a LogResult for a mutation count.
func AffectedRowsResult(n int) LogResult {
	return LogResult{AffectedRows: &n}
}

// PromInfo is attached to PromQL log entries.
type PromInfo struct {
	Start string `json:"Start"`
	End   string `json:"End"`
	Step  string `json:"Step"`
	Query string `json:"Query"`
}

// LogEntry records one execution for display and history.
type LogEntry struct {
	ID              string      `json:"id,omitempty"`
	SessionID       string      `json:"session_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Type            QueryKind   `json:"type"`
	CodeInfo        string      `json:"codeInfo"`
	Results         []LogResult `json:"results,omitempty"`
	PromInfo        *PromInfo   `json:"promInfo,omitempty"`
	Code            int         `json:"code,omitempty"`
	Error           string      `json:"error,omitempty"`
	ExecutionTimeMS int64       `json:"execution_time_ms"`
}

// Failed reports whether the entry carries a backend error.
func (l LogEntry) Failed() bool {
	return l.Error != ""
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	Limit  int
	Search string
	Kind   QueryKind
}
