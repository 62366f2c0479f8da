// Package security provides audit logging, read-only mode, credential masking
// and input validation.
package security

import (
	"context"
	"fmt"
	"sync"

	"wheel-trader/internal/errors"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// Read operations
	OpRead   OperationType = "READ"
	OpDryRun OperationType = "DRY_RUN"

	// Write operations (blocked in read-only mode)
	OpSubmitOrder OperationType = "SUBMIT_ORDER"
	OpCloseOrder  OperationType = "CLOSE_POSITION"
	OpCancelOrder OperationType = "CANCEL_ORDER"
)

// ReadOnlyError represents an error when attempting a write operation in read-only mode.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s blocked: read-only mode is enabled", OperationDescription(e.Operation))
}

// Unwrap lets errors.Is match ErrReadOnlyMode.
func (e *ReadOnlyError) Unwrap() error {
	return errors.ErrReadOnlyMode
}

// AccessController manages read-only mode and operation permissions.
type AccessController struct {
	readOnly    bool
	auditLogger *AuditLogger
	mu          sync.RWMutex
}

// NewAccessController creates a new access controller. auditLogger may be nil.
func NewAccessController(readOnly bool, auditLogger *AuditLogger) *AccessController {
	return &AccessController{
		readOnly:    readOnly,
		auditLogger: auditLogger,
	}
}

// IsReadOnly returns whether read-only mode is enabled.
func (ac *AccessController) IsReadOnly() bool {
	if ac == nil {
		return false
	}
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.readOnly
}

// SetReadOnly sets the read-only mode.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.readOnly = readOnly
}

// CheckPermission checks if an operation is allowed. A nil controller
// allows everything.
func (ac *AccessController) CheckPermission(ctx context.Context, op OperationType) error {
	if ac == nil {
		return nil
	}
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	if !ac.readOnly || !IsWriteOperation(op) {
		return nil
	}

	_ = ac.auditLogger.LogReadOnlyViolation(ctx, string(op))
	return &ReadOnlyError{Operation: op}
}

// IsWriteOperation returns true if the operation changes brokerage state.
func IsWriteOperation(op OperationType) bool {
	switch op {
	case OpSubmitOrder, OpCloseOrder, OpCancelOrder:
		return true
	default:
		return false
	}
}

// WriteOperations returns a list of all write operations.
func WriteOperations() []OperationType {
	return []OperationType{
		OpSubmitOrder,
		OpCloseOrder,
		OpCancelOrder,
	}
}

// OperationDescription returns a human-readable description of an operation.
func OperationDescription(op OperationType) string {
	switch op {
	case OpRead:
		return "Read data"
	case OpDryRun:
		return "Validate order"
	case OpSubmitOrder:
		return "Submit order"
	case OpCloseOrder:
		return "Close position"
	case OpCancelOrder:
		return "Cancel order"
	default:
		return string(op)
	}
}
