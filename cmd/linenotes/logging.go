package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"linenotes/internal/config"
)

const logLevelEnvKey = "LINENOTES_LOG_LEVEL"

// levelSource names where the effective log level came from.
type levelSource string

const (
	fromFlag    levelSource = "flag"
	fromEnv     levelSource = "env"
	fromConfig  levelSource = "config"
	fromDefault levelSource = "default"
)

type levelChoice struct {
	raw    string
	source levelSource
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// configureLoggerForCLI installs the default logger. A bad --log-level is an
// error; a bad env or config value falls back to the default level and
// yields a warning for stderr.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}
	if choice.source == fromFlag {
		return "", fmt.Errorf("invalid --log-level %q", choice.raw)
	}

	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(fallback))
	setting := "log_level"
	if choice.source == fromEnv {
		setting = logLevelEnvKey
	}
	return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", setting, choice.raw, config.DefaultLogLevel), nil
}

// chooseLogLevel applies flag > env > config precedence. Blank values do
// not count.
func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	for _, c := range []levelChoice{
		{flagLevel, fromFlag},
		{envLevel, fromEnv},
		{configLevel, fromConfig},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{source: fromDefault}
}

// parseLogLevel accepts level names in any case and numeric slog levels.
// An empty value means debug.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return slog.LevelDebug, nil
	}
	if level, ok := levelNames[value]; ok {
		return level, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	return slog.LevelDebug, fmt.Errorf("invalid log level %q", raw)
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Millisecond timestamps line up with persisted records.
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}

// componentLogger derives a logger for one part of the server from the
// current default.
func componentLogger(component, projectRoot string) *slog.Logger {
	logger := slog.Default().With("component", component)
	if projectRoot != "" {
		logger = logger.With("root", projectRoot)
	}
	return logger
}
