package config

import "time"

// Default configuration values.
const (
	DefaultInterface           = "eth0"
	DefaultLogLevel            = "info"
	DefaultPIDFile             = "/run/athena-dhcpc.pid"
	DefaultPollInterval        = 200 * time.Millisecond
	DefaultRequestTimeout      = 10 * time.Second
	DefaultJournalPath         = "/var/lib/athena-dhcpc/journal.db"
	DefaultJournalMaxEntries   = 10000
	DefaultMetricsListen       = "127.0.0.1:9068"
	DefaultDNSCheckTimeout     = 3 * time.Second
	DefaultGatewayProbeTimeout = 2 * time.Second
	DefaultHookTimeout         = 30 * time.Second
	DefaultHookConcurrency     = 2
	DefaultEventBufferSize     = 1024
)
