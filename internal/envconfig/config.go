// Package envconfig reads the FUSE_* environment variables that tune
// kernel generation, dispatch, and logging.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable's value with surrounding whitespace
// and quotes stripped.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Bool returns a function reporting whether key is set to a truthy value.
// A non-empty value that does not parse as a bool counts as true.
func Bool(key string) func() bool {
	return func() bool {
		if s := Var(key); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

var (
	// Debug enables debug logging.
	Debug = Bool("FUSE_DEBUG")
	// DumpSource logs generated kernel source before it is compiled.
	DumpSource = Bool("FUSE_DUMP_SOURCE")
	// ForceDynamic always dispatches the dynamic-rank strided kernel,
	// bypassing the specialized static-rank variants.
	ForceDynamic = Bool("FUSE_FORCE_DYNAMIC")
)

// LogLevel reads FUSE_DEBUG as a log level: a truthy value selects debug,
// an integer selects that many slog levels below info.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("FUSE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// EnvVar describes one recognized environment variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognized variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"FUSE_DEBUG":         {"FUSE_DEBUG", LogLevel(), "Show additional debug information (e.g. FUSE_DEBUG=1)"},
		"FUSE_DUMP_SOURCE":   {"FUSE_DUMP_SOURCE", DumpSource(), "Log generated kernel source before compiling it"},
		"FUSE_FORCE_DYNAMIC": {"FUSE_FORCE_DYNAMIC", ForceDynamic(), "Always dispatch the dynamic-rank strided kernel"},
	}
}

// Values flattens AsMap to printable strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
