package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// logRelPath is the fixed location of the diagnostic log file below the
// base directory. The file is append-only and never truncated.
const logRelPath = "logs/cast_server.log"

// FileHandler is a slog.Handler that appends plain
// "timestamp [LEVEL] message" lines to the diagnostic log file.
//
// Thread-safety: writes are serialized with a mutex; the handler may be
// shared between goroutines.
type FileHandler struct {
	mu    *sync.Mutex
	file  *os.File
	level slog.Level
	attrs []slog.Attr
}

// NewFileHandler opens (or creates) the log file under dir and returns
// a handler appending to it. Directory creation is best-effort; any
// failure is returned so the caller can fall back to console logging.
func NewFileHandler(dir string, level slog.Level) (*FileHandler, error) {
	path := filepath.Join(dir, logRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileHandler{
		mu:    &sync.Mutex{},
		file:  file,
		level: level,
	}, nil
}

// Enabled implements slog.Handler.
func (h *FileHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler. Write failures are swallowed; the
// console handler remains the authoritative sink.
func (h *FileHandler) Handle(_ context.Context, record slog.Record) error {
	var sb strings.Builder
	sb.WriteString(record.Time.Format(time.RFC3339))
	sb.WriteString(" [")
	sb.WriteString(record.Level.String())
	sb.WriteString("] ")
	sb.WriteString(record.Message)

	for _, attr := range h.attrs {
		sb.WriteString(" ")
		sb.WriteString(attr.String())
	}
	record.Attrs(func(attr slog.Attr) bool {
		sb.WriteString(" ")
		sb.WriteString(attr.String())
		return true
	})
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = h.file.WriteString(sb.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (h *FileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler. Groups are flattened; the plain
// line format has no nesting.
func (h *FileHandler) WithGroup(_ string) slog.Handler {
	return h
}

// Close closes the underlying log file.
func (h *FileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

// Enabled reports true if any wrapped handler accepts the level.
func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every handler that accepts its level.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs implements slog.Handler.
func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup implements slog.Handler.
func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
