package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/camera-remote/ccb/internal/config"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	CameraID  string                 `json:"camera"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
	Outcome   string                 `json:"outcome"`
	Code      string                 `json:"code"`
	LatencyMs int64                  `json:"latencyMs"`
}

type contextKey int

const (
	userKey contextKey = iota
	paramsKey
)

// WithUser records the acting user for audit entries.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithParams attaches action parameters for audit entries.
func WithParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

// Logger implements the audit logging functionality.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.Writer
	rotator  *lumberjack.Logger
}

// NewLogger creates an audit logger writing to a size-rotated file.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  false,
	}
	return &Logger{filePath: cfg.Path, out: rotator, rotator: rotator}, nil
}

// NewWriterLogger creates an audit logger writing to w.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w}
}

// LogAction logs an audit record for a camera action.
func (l *Logger) LogAction(ctx context.Context, action, cameraID, result string, latency time.Duration) {
	l.writeEntry(AuditEntry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		CameraID:  cameraID,
		Action:    action,
		Params:    ParamsFromContext(ctx),
		Outcome:   result,
		Code:      codeFromResult(result),
		LatencyMs: latency.Milliseconds(),
	})
}

// writeEntry writes an audit entry as one JSON line.
func (l *Logger) writeEntry(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

func userFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(userKey).(string); ok && user != "" {
		return user
	}
	return "unknown"
}

// ParamsFromContext returns the action parameters stored by WithParams,
// or an empty map.
func ParamsFromContext(ctx context.Context) map[string]interface{} {
	if params, ok := ctx.Value(paramsKey).(map[string]interface{}); ok {
		return params
	}
	return map[string]interface{}{}
}

// codeFromResult maps result strings to standardized codes.
func codeFromResult(result string) string {
	switch result {
	case "SUCCESS", "UNCHANGED":
		return "SUCCESS"
	case "INVALID_RANGE", "UNAVAILABLE", "BUSY", "TIMEOUT", "NETWORK", "INTERNAL", "ERROR":
		return result
	default:
		return "UNKNOWN"
	}
}

// Close closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		err := l.rotator.Close()
		l.rotator = nil
		l.out = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}

// Rotate starts a new audit file, keeping the old one as a backup.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator == nil {
		return fmt.Errorf("audit logger is not file backed")
	}
	return l.rotator.Rotate()
}
