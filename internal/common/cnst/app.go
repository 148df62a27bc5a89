package cnst

import "time"

const (
	// AppName is the canonical application name, used for config lookup
	// paths and the metrics namespace.
	AppName = "fustan-sync"

	// APIPathPrefix is prepended to every REST call made by the client.
	APIPathPrefix = "/api"

	// DefaultLoginPath is where the redirect guard sends unauthenticated
	// visitors when no path is configured.
	DefaultLoginPath = "/auth"

	// RootPath is the hard-redirect target after logout.
	RootPath = "/"

	// DefaultPollInterval is the fallback polling cadence for the
	// notification aggregator.
	DefaultPollInterval = 60 * time.Second

	// DefaultSocketPath is the realtime endpoint path.
	DefaultSocketPath = "/socket"
)

// Languages supported by the toast message catalog.
const (
	LangEN = "en"
	LangAR = "ar"
)
