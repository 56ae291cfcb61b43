// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The dispatcher and result store depend only on these
// abstractions, so the execution API, notification sink and history database can
// be swapped or stubbed without touching the core.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Backend, Notifier)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/dexplorer/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.dexplorer/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Backend is the execution API. Structured failures are returned as
// *domain.BackendError; anything else is a transport failure.
type Backend interface {
	RunSQL(ctx context.Context, code string) (domain.ExecutionResponse, error)
	RunScript(ctx context.Context, name string) (domain.ExecutionResponse, error)
	RunPromQL(ctx context.Context, query string, window domain.PromRange) (domain.ExecutionResponse, error)
	SaveScript(ctx context.Context, name, code string) (domain.ExecutionResponse, error)
	Health(ctx context.Context) error
}

// Notifier receives fire-and-forget success notifications.
type Notifier interface {
	Success(message string, duration time.Duration)
}

// TimeRangeSource supplies the PromQL evaluation window at call time.
type TimeRangeSource interface {
	PromRange() domain.PromRange
}

// ResultRepository is the dispatcher's view of the result store.
type ResultRepository interface {
	NextKey() int
	Append(domain.ResultRecord)
}

// HistoryRepository persists execution log entries.
type HistoryRepository interface {
	Save(ctx context.Context, entry domain.LogEntry) error
	Records(ctx context.Context, filter domain.HistoryFilter) ([]domain.LogEntry, error)
	Clear(ctx context.Context) error
	ExportJSON(ctx context.Context, dest string) error
	PruneOlderThan(ctx context.Context, days int) (int64, error)
	Path() string
}

// StatementGuard classifies code before it is sent to the backend.
type StatementGuard interface {
	Evaluate(code string) (domain.RiskAssessment, error)
}

// ConfirmationPrompter handles interactive yes/no confirmations for destructive operations.
type ConfirmationPrompter interface {
	Confirm(question string) (bool, error)
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
