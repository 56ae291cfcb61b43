package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Backend defaults
const (
	DefaultBackendURL = "http://localhost:4000"
	DefaultDatabase   = "public"
	// DefaultHTTPClientTimeout is the timeout for HTTP client requests
	DefaultHTTPClientTimeout = 60 * time.Second
)

// Notification constants
const (
	// RunSuccessMessage is shown after the backend accepts a submission.
	RunSuccessMessage = "Run successfully"
	// DefaultNotifyDuration is how long a success notification is displayed.
	DefaultNotifyDuration = 2 * time.Second
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
	// DefaultHistoryRetainDays is the default number of days to retain history
	DefaultHistoryRetainDays = 30
)

// Output formats
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
	// PromTimeFormat renders PromQL range bounds in log entries.
	PromTimeFormat = "2006-01-02 15:04:05"
)
