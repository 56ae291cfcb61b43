package commands

import "github.com/doeshing/dexplorer/internal/domain"

// AnnotationNoContainer marks commands that run without loading config.
const AnnotationNoContainer = "dexplorer/no-container"

// History defaults
const (
	DefaultHistoryLimit       = domain.DefaultHistoryLimit
	DefaultHistorySearchLimit = domain.DefaultHistorySearchLimit
	// TopQueriesShown bounds the "history stats" frequency list.
	TopQueriesShown = 5
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable (is history.enabled set?)"
	ErrQueryServiceUnavailable  = "query service unavailable"
	ErrCodeRequired             = "no code given: pass it as arguments, with --file, or on stdin"
	ErrKeyRequired              = "--key is required"
	ErrQueryRequired            = "--query required"
	ErrInvalidRetainDays        = "--days must be > 0"
	ErrStatementBlocked         = "statement blocked by guardrail"
	ErrStatementNeedsConfirm    = "statement needs confirmation"
	ErrStatementCancelled       = "statement cancelled"
	ErrGuardrailDisabled        = "guardrail disabled (set guardrail.enabled in config)"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgHistoryCleared     = "History cleared."
	MsgClearCancelled     = "Clear cancelled."
)
