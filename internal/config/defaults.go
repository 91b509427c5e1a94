package config

import "time"

const (
	DefaultServerName    = "toolbridge"
	DefaultDashboardAddr = "127.0.0.1:8080"
	DefaultHTTPAddr      = "127.0.0.1:8090"
	DefaultToolTimeout   = 30 * time.Second
)

// DefaultLogDir returns the default ledger directory path.
func DefaultLogDir() string {
	return "~/.toolbridge/logs"
}
