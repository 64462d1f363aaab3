// Package logger holds the process-wide slog loggers: an application logger
// for operational messages and an audit logger for proof lifecycle events.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultService tags every record when Config.Service is empty.
const DefaultService = "proofflowd"

// Config describes how the application logger should behave.
type Config struct {
	Service     string
	Level       string
	Format      string
	OutputPaths []string
	AddSource   bool
	Audit       AuditConfig
}

// AuditConfig controls the audit trail. When disabled, audit records go to
// the application logger tagged with stream=audit.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type state struct {
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var (
	mu      sync.RWMutex
	current *state
)

// Init configures the global loggers. Calling it again replaces the previous
// configuration and closes the files it opened.
func Init(cfg Config) error {
	next, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	prev := current
	current = next
	mu.Unlock()
	if prev != nil {
		return closeAll(prev.closers)
	}
	return nil
}

func build(cfg Config) (*state, error) {
	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = DefaultService
	}
	s := &state{}

	writer, closers, err := openOutputs(cfg.OutputPaths)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closers...)
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	s.app = slog.New(handler).With(slog.String("service", service))

	s.audit = s.app.With(slog.String("stream", "audit"))
	if cfg.Audit.Enabled {
		rotating, err := auditWriter(cfg.Audit)
		if err != nil {
			_ = closeAll(s.closers)
			return nil, fmt.Errorf("audit log: %w", err)
		}
		s.closers = append(s.closers, rotating)
		s.audit = slog.New(slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: slog.LevelInfo})).
			With(slog.String("service", service), slog.String("stream", "audit"))
	}
	return s, nil
}

func openOutputs(paths []string) (io.Writer, []io.Closer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil, nil
	}
	writers := make([]io.Writer, 0, len(paths))
	var closers []io.Closer
	for _, path := range paths {
		switch strings.ToLower(strings.TrimSpace(path)) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				_ = closeAll(closers)
				return nil, nil, fmt.Errorf("create log directory: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				_ = closeAll(closers)
				return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
			closers = append(closers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], closers, nil
	}
	return io.MultiWriter(writers...), closers, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func loaded() *state {
	mu.RLock()
	s := current
	mu.RUnlock()
	if s != nil {
		return s
	}
	// 未显式初始化时退回到 stdout 上的默认配置。
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current, _ = build(Config{})
	}
	return current
}

// L returns the application logger.
func L() *slog.Logger {
	return loaded().app
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	return loaded().audit
}

// Sync closes the files opened by Init. Loggers keep working afterwards but
// writes to closed files are dropped.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	err := closeAll(current.closers)
	current.closers = nil
	return err
}

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// ForProof tags l with the proof identifier.
func ForProof(l *slog.Logger, proofID string) *slog.Logger {
	if l == nil {
		l = L()
	}
	return l.With(slog.String("proof_id", proofID))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}

func closeAll(closers []io.Closer) error {
	var err error
	for _, c := range closers {
		err = errors.Join(err, c.Close())
	}
	return err
}
