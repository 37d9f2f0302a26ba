package logger_adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"property-sync-service/internal/core/port"

	"github.com/lmittmann/tint"
)

// SlogAdapter реализует LoggerPort поверх slog
type SlogAdapter struct {
	logger *slog.Logger
}

type SlogConfig struct {
	// Writer - куда писать логи. По умолчанию os.Stdout.
	Writer    io.Writer
	Level     slog.Leveler
	AddSource bool
	IsJSON    bool
	UseColor  bool
}

func NewSlogAdapter(cfg SlogConfig) port.LoggerPort {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     cfg.Level,
	}

	var handler slog.Handler
	switch {
	case cfg.IsJSON:
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	case cfg.UseColor:
		handler = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      cfg.Level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
		})
	default:
		handler = slog.NewTextHandler(cfg.Writer, opts)
	}

	return &SlogAdapter{logger: slog.New(handler)}
}

// ParseLevel переводит LOG_LEVEL из конфигурации в slog.Level, по умолчанию info
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// attrs: ключи сортируются, чтобы строки лога были стабильными
func attrs(fields port.Fields) []any {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		out = append(out, slog.Any(k, plainValue(fields[k])))
	}
	return out
}

func (a *SlogAdapter) log(level slog.Level, msg string, fields port.Fields, err error) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	a.logger.Log(context.Background(), level, msg, args...)
}

func (a *SlogAdapter) Info(msg string, fields port.Fields)  { a.log(slog.LevelInfo, msg, fields, nil) }
func (a *SlogAdapter) Warn(msg string, fields port.Fields)  { a.log(slog.LevelWarn, msg, fields, nil) }
func (a *SlogAdapter) Debug(msg string, fields port.Fields) { a.log(slog.LevelDebug, msg, fields, nil) }

func (a *SlogAdapter) Error(msg string, err error, fields port.Fields) {
	a.log(slog.LevelError, msg, fields, err)
}

func (a *SlogAdapter) WithFields(fields port.Fields) port.LoggerPort {
	return &SlogAdapter{logger: a.logger.With(attrs(fields)...)}
}

// plainValue приводит доменные значения (decimal, RecordID, FieldName) к печатному виду
func plainValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64:
		return v
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	}
	return v
}
