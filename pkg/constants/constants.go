// Package constants provides shared constants used throughout the sissync codebase.
// This includes timeouts, limits, and other configuration values
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for a single request to the remote API
	DefaultHTTPTimeout = 60 * time.Second

	// DiscoveryDelay is the fixed delay between discovery fetch attempts
	DiscoveryDelay = 2 * time.Second
)

// Limit constants define various limits and capacities
const (
	// DiscoveryAttempts is how many times the discovery document is fetched
	// before a connection failure becomes fatal
	DiscoveryAttempts = 5

	// DefaultPageSize is the page size hint sent when listing a remote collection
	DefaultPageSize = 5000

	// PageSizeParam is the query parameter carrying the page size hint
	PageSizeParam = "page_size"

	// MaxErrorBodyLength truncates remote error bodies in log output and errors
	MaxErrorBodyLength = 2048
)

// Rate limiting constants
const (
	// DefaultRateLimit is the default requests per second to the remote API (0 disables limiting)
	DefaultRateLimit = 0

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 5
)

// Logging constants
const (
	// LogRotationSizeMB is the maximum size of a log file before rotation
	LogRotationSizeMB = 10

	// LogRotationAgeDays is the maximum age of rotated log files before deletion
	LogRotationAgeDays = 28

	// LogRotationBackups is the maximum number of old log files to retain
	LogRotationBackups = 5
)

// Path constants
const (
	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".sissync"

	// EnvPrefix prefixes every environment variable read by sissync
	EnvPrefix = "SISSYNC"
)

// HTTP header constants
const (
	// HeaderCorrelationID carries the per-request correlation ID
	HeaderCorrelationID = "X-Correlation-ID"

	// UserAgent identifies sissync to the remote API
	UserAgent = "sissync/1.0"
)
