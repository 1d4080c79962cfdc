package config

import (
	"reflect"
	"time"
)

// ConfigDiff describes what changed between two configs.
// Reloadable settings get a Changed flag and their new value; every other
// changed section is named in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	GatewayTimeoutChanged bool
	NewGatewayTimeout     time.Duration

	UsageLimitChanged bool
	NewUsageLimit     int

	// RestartRequired lists the top-level sections whose changes only take
	// effect after a restart, e.g. "providers" or "usage.store".
	RestartRequired []string
}

// Empty reports whether the diff carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.GatewayTimeoutChanged && !d.UsageLimitChanged &&
		len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Gateway.Timeout != new.Gateway.Timeout {
		d.GatewayTimeoutChanged = true
		d.NewGatewayTimeout = new.Gateway.Timeout
	}
	if old.Usage.Limit != new.Usage.Limit {
		d.UsageLimitChanged = true
		d.NewUsageLimit = new.Usage.Limit
	}

	// Compare the rest with the reloadable fields masked out.
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	oldGateway, newGateway := old.Gateway, new.Gateway
	oldGateway.Timeout, newGateway.Timeout = 0, 0
	oldUsage, newUsage := old.Usage, new.Usage
	oldUsage.Limit, newUsage.Limit = 0, 0

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"gateway", oldGateway, newGateway},
		{"speech", old.Speech, new.Speech},
		{"support", old.Support, new.Support},
		{"usage", oldUsage, newUsage},
		{"history", old.History, new.History},
		{"mcp", old.MCP, new.MCP},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
