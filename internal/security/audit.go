package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Authentication events
	AuditLogin      AuditEventType = "LOGIN"
	AuditAuthFailed AuditEventType = "AUTH_FAILED"

	// Order events
	AuditOrderDryRun    AuditEventType = "ORDER_DRY_RUN"
	AuditOrderSubmitted AuditEventType = "ORDER_SUBMITTED"
	AuditOrderRejected  AuditEventType = "ORDER_REJECTED"
	AuditOrderCancelled AuditEventType = "ORDER_CANCELLED"

	// Security events
	AuditReadOnlyViolation AuditEventType = "READ_ONLY_VIOLATION"
	AuditInputValidation   AuditEventType = "INPUT_VALIDATION"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	Account   string                 `json:"account,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	OrderID   string                 `json:"order_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines. All methods are safe on a
// nil logger, which discards events.
type AuditLogger struct {
	writer    io.WriteCloser
	mu        sync.Mutex
	sessionID string
	userID    string
	account   string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "wheel-trader", "audit"),
		MaxSize:    20,
		MaxBackups: 12,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: uuid.NewString(),
	}, nil
}

// SetIdentity sets the user and account recorded on every event.
func (al *AuditLogger) SetIdentity(userID, account string) {
	if al == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	al.userID = userID
	al.account = account
}

// SessionID returns the audit session identifier.
func (al *AuditLogger) SessionID() string {
	if al == nil {
		return ""
	}
	return al.sessionID
}

// Log logs an audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if al == nil {
		return nil
	}
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID
	if event.UserID == "" {
		event.UserID = al.userID
	}
	if event.Account == "" {
		event.Account = al.account
	}
	event.RequestID = logging.RequestID(ctx)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}

	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}

// LogLogin logs a login attempt.
func (al *AuditLogger) LogLogin(ctx context.Context, userID string, err error) error {
	event := AuditEvent{EventType: AuditLogin, UserID: userID, Success: err == nil}
	if err != nil {
		event.EventType = AuditAuthFailed
		event.ErrorMsg = Redact(err.Error())
	}
	return al.Log(ctx, event)
}

// LogOrder logs a dry-run or submission of an order. A non-nil err records
// the order as rejected.
func (al *AuditLogger) LogOrder(ctx context.Context, eventType AuditEventType, orderID string, order *models.Order, err error) error {
	event := AuditEvent{
		EventType: eventType,
		OrderID:   orderID,
		Success:   err == nil,
	}
	if err != nil {
		if eventType == AuditOrderSubmitted {
			event.EventType = AuditOrderRejected
		}
		event.ErrorMsg = err.Error()
	}
	if order != nil {
		event.Details = map[string]interface{}{
			"price":        order.Price,
			"price_effect": order.PriceEffect,
			"order_type":   order.OrderType,
		}
		if len(order.Legs) > 0 {
			event.Symbol = order.Legs[0].Symbol
			event.Action = string(order.Legs[0].Action)
			event.Details["quantity"] = order.Legs[0].Quantity
		}
	}
	return al.Log(ctx, event)
}

// LogOrderCancelled logs an order cancellation.
func (al *AuditLogger) LogOrderCancelled(ctx context.Context, orderID string, err error) error {
	event := AuditEvent{EventType: AuditOrderCancelled, OrderID: orderID, Success: err == nil}
	if err != nil {
		event.ErrorMsg = err.Error()
	}
	return al.Log(ctx, event)
}

// LogReadOnlyViolation logs an attempt to perform a write operation in read-only mode.
func (al *AuditLogger) LogReadOnlyViolation(ctx context.Context, operation string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditReadOnlyViolation,
		Action:    operation,
		Success:   false,
		ErrorMsg:  "operation blocked: read-only mode enabled",
	})
}

// LogInputValidation logs an input validation failure.
func (al *AuditLogger) LogInputValidation(ctx context.Context, field, value, reason string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditInputValidation,
		Success:   false,
		ErrorMsg:  reason,
		Details: map[string]interface{}{
			"field": field,
			"value": MaskSensitive(value),
		},
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	return al.writer.Close()
}
