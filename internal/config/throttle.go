package config

import (
	"os"
	"strconv"
	"time"
)

// ThrottleConfig limits how many booking edits one staff member may submit
// per window.
type ThrottleConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Prefix  string
}

func LoadThrottleConfig() ThrottleConfig {
	def := ThrottleConfig{
		Enabled: envBool("EDIT_THROTTLE_ENABLED", true),
		Limit:   envInt("EDIT_THROTTLE_LIMIT", 60),
		Window:  envDur("EDIT_THROTTLE_WINDOW", time.Minute),
		Prefix:  envStr("EDIT_THROTTLE_PREFIX", "edits"),
	}
	if def.Limit < 1 {
		def.Limit = 1
	}
	if def.Window < time.Second {
		def.Window = time.Second
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
