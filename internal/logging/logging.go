package logging

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "REMOTEPLAY_LOG_LEVEL"
	EnvLogProfile = "REMOTEPLAY_LOG_PROFILE"
	EnvLogNoColor = "REMOTEPLAY_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Configure installs the root logger. level is the configured level; the
// REMOTEPLAY_LOG_* environment variables take precedence over it.
func Configure(level string) zerolog.Logger {
	profile := ProfileRuntime
	if strings.EqualFold(strings.TrimSpace(os.Getenv(EnvLogProfile)), "test") {
		profile = ProfileTest
	}

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = zerolog.InfoLevel
	}
	if envLvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		lvl = envLvl
	}
	if profile == ProfileTest && lvl < zerolog.WarnLevel {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		output.NoColor = v
	}

	logger := zerolog.New(output).With().Timestamp().Str("app", "remoteplay").Logger()
	log.Logger = logger
	return logger
}

// New returns a logger scoped to component, derived from the root logger.
func New(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// ParseLevel maps a textual level to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "disabled":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
