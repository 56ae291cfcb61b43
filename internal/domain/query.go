package domain

import (
	"context"
	"fmt"
)

// QueryKind selects the execution language and the backend endpoint that runs it.
type QueryKind string

const (
	KindSQL    QueryKind = "sql"
	KindScript QueryKind = "script"
	KindPromQL QueryKind = "promQL"
)

// QueryKinds lists every supported kind in display order.
var QueryKinds = []QueryKind{KindSQL, KindScript, KindPromQL}

// ParseQueryKind maps user input onto a QueryKind. Matching is exact except
// for the lower-case spelling "promql", which is accepted for convenience.
func ParseQueryKind(value string) (QueryKind, error) {
	switch value {
	case string(KindSQL):
		return KindSQL, nil
	case string(KindScript):
		return KindScript, nil
	case string(KindPromQL), "promql":
		return KindPromQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQueryKind, value)
	}
}

// Valid reports whether k is one of the enumerated kinds.
func (k QueryKind) Valid() bool {
	switch k {
	case KindSQL, KindScript, KindPromQL:
		return true
	}
	return false
}

// ExecuteRequest captures one submission of code to the backend.
type ExecuteRequest struct {
	Context  context.Context
	Code     string
	Kind     QueryKind
	SkipSave bool
}

// OutcomeKind tags the shape of an Outcome.
type OutcomeKind int

const (
	// OutcomeRecord: success with at least one tabular output; Record is set.
	OutcomeRecord OutcomeKind = iota
	// OutcomeNoRecord: success without tabular output (e.g. only affected rows).
	OutcomeNoRecord
	// OutcomeRecoveredFailure: the backend reported a structured error; Log is set.
	OutcomeRecoveredFailure
	// OutcomeTransportFailure: the request failed without a structured error payload.
	OutcomeTransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecord:
		return "ok-with-record"
	case OutcomeNoRecord:
		return "ok-without-record"
	case OutcomeRecoveredFailure:
		return "recovered-failure"
	case OutcomeTransportFailure:
		return "transport-failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// TransportFailureMessage is the sentinel carried by transport failures.
const TransportFailureMessage = "error"

// Outcome is the normalized result of one execution.
type Outcome struct {
	Kind   OutcomeKind
	Log    *LogEntry
	Record *ResultRecord
	// Error is only set for OutcomeTransportFailure.
	Error string
	// Cause keeps the underlying transport error for logging; never rendered.
	Cause error
}

// Succeeded reports whether the backend accepted the code.
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeRecord || o.Kind == OutcomeNoRecord
}

// SavedScript is returned after a script has been persisted by the backend.
type SavedScript struct {
	Type            QueryKind `json:"type"`
	CodeInfo        string    `json:"codeInfo"`
	Code            int       `json:"code"`
	ExecutionTimeMS int64     `json:"execution_time_ms"`
}

// QueryService exposes the use-case boundary for running and saving code.
type QueryService interface {
	Execute(ExecuteRequest) (Outcome, error)
	SaveScript(ctx context.Context, name, code string, kind QueryKind) (SavedScript, error)
}
