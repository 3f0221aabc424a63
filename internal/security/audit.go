package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Auditor records mutating actions.
type Auditor interface {
	LogAction(ctx context.Context, event AuditEvent) error
}

// AuditLogger writes audit events as append-only JSONL.
// Thread-safe: multiple goroutines can log concurrently.
type AuditLogger struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewAuditLogger opens (or creates) the audit log file in append-only mode.
func NewAuditLogger(path string, logger *slog.Logger) (*AuditLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &AuditLogger{
		file:   f,
		logger: logger,
	}, nil
}

// LogAction appends the event. Marshal happens outside the lock.
func (a *AuditLogger) LogAction(ctx context.Context, event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	_, writeErr := a.file.Write(data)
	a.mu.Unlock()

	if writeErr != nil {
		return fmt.Errorf("writing audit event: %w", writeErr)
	}

	a.logger.DebugContext(ctx, "audit event logged",
		slog.String("action", event.Action),
		slog.String("principal_id", event.PrincipalID),
		slog.String("tenant_id", event.TenantID),
		slog.String("result", event.Result),
	)
	return nil
}

// Close closes the underlying file.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NopAuditor discards events.
type NopAuditor struct{}

func (NopAuditor) LogAction(context.Context, AuditEvent) error { return nil }

// NewCorrelationID returns a random 16-character hex ID tying log lines
// and audit events of one request or job together.
func NewCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
