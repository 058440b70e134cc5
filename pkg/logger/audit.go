package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	BlockedUntil  *time.Time
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts. Emails are masked before they
// reach the log stream.
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	if event.BlockedUntil != nil {
		attrs = append(attrs, slog.String("blocked_until", event.BlockedUntil.UTC().Format(time.RFC3339)))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogGatewayRejection logs a rejected machine request at the gateway.
func (al *AuditLogger) LogGatewayRejection(reason, callerIP, action string) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "gateway"),
		slog.String("event_type", "gateway_rejected"),
		slog.String("reason", reason),
		slog.String("caller_ip", callerIP),
		slog.String("action", action),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogSecurityAnomaly logs events that weaken the defense posture but do not
// fail the user-facing call, such as a lost ledger write.
func (al *AuditLogger) LogSecurityAnomaly(eventType string, err error, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "anomaly"),
		slog.String("event_type", eventType),
		slog.Any("error", err),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	al.logger.LogAttrs(context.Background(), slog.LevelError, "audit", attrs...)
}
