package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the build version with surrounding whitespace stripped,
// so a trailing newline in the VERSION file never leaks into logs.
func Get() string {
	return strings.TrimSpace(raw)
}

// UserAgent identifies this client on outgoing API requests.
func UserAgent() string {
	return "fustan-sync/" + Get()
}
