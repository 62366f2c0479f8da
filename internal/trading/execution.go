package trading

import (
	"context"
	"fmt"
	"strconv"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/security"
)

// ExecutionRequest describes a write operation about to reach the brokerage.
// Order is nil for cancellations.
type ExecutionRequest struct {
	Operation security.OperationType
	Order     *models.Order
	Confirmed bool
}

// ExecutionResult contains the result of an execution check.
type ExecutionResult struct {
	ShouldExecute bool
	BlockReason   string
	ChecksPassed  []string
	ChecksFailed  []string
	Err           error
}

// ExecutionChecker decides whether a write operation may be sent. Every
// check runs before any network call.
type ExecutionChecker struct {
	access       *security.AccessController
	validator    *security.InputValidator
	maxContracts int
}

// NewExecutionChecker creates a new execution checker. access may be nil.
func NewExecutionChecker(access *security.AccessController, validator *security.InputValidator, maxContracts int) *ExecutionChecker {
	return &ExecutionChecker{
		access:       access,
		validator:    validator,
		maxContracts: maxContracts,
	}
}

// CheckExecution runs the checks in order and stops at the first failure.
func (e *ExecutionChecker) CheckExecution(ctx context.Context, req ExecutionRequest) ExecutionResult {
	result := ExecutionResult{
		ShouldExecute: true,
		ChecksPassed:  []string{},
		ChecksFailed:  []string{},
	}

	checks := []struct {
		name string
		fn   func() error
	}{
		{"confirmation", func() error { return e.checkConfirmation(req) }},
		{"read_only", func() error { return e.access.CheckPermission(ctx, req.Operation) }},
		{"order_shape", func() error { return e.checkOrderShape(req.Order) }},
		{"quantity", func() error { return e.checkQuantity(req.Order) }},
		{"price", func() error { return e.checkPrice(req.Order) }},
	}

	for _, c := range checks {
		if err := c.fn(); err != nil {
			result.ShouldExecute = false
			result.BlockReason = err.Error()
			result.ChecksFailed = append(result.ChecksFailed, c.name)
			result.Err = err
			return result
		}
		result.ChecksPassed = append(result.ChecksPassed, c.name)
	}
	return result
}

// checkConfirmation requires an explicit confirmation for every write.
func (e *ExecutionChecker) checkConfirmation(req ExecutionRequest) error {
	if !req.Confirmed {
		return errors.ErrConfirmationRequired
	}
	return nil
}

// checkOrderShape validates that the order is a single-leg option order.
func (e *ExecutionChecker) checkOrderShape(order *models.Order) error {
	if order == nil {
		return nil
	}
	if len(order.Legs) != 1 {
		return errors.NewValidationError("legs", len(order.Legs), "wheel orders have exactly one leg")
	}
	leg := order.Legs[0]
	if leg.InstrumentType != models.InstrumentEquityOption {
		return errors.NewValidationError("instrument_type", leg.InstrumentType, "wheel orders trade equity options")
	}
	return e.validator.ValidateOptionSymbol(leg.Symbol)
}

// checkQuantity validates contract count against the configured ceiling.
func (e *ExecutionChecker) checkQuantity(order *models.Order) error {
	if order == nil {
		return nil
	}
	qty := order.Legs[0].Quantity
	if err := e.validator.ValidateQuantity(qty); err != nil {
		return err
	}
	if e.maxContracts > 0 && qty > e.maxContracts {
		return errors.NewValidationError("quantity", qty,
			fmt.Sprintf("quantity exceeds wheel.max_contracts (%d)", e.maxContracts))
	}
	return nil
}

// checkPrice validates the limit price.
func (e *ExecutionChecker) checkPrice(order *models.Order) error {
	if order == nil {
		return nil
	}
	price, err := strconv.ParseFloat(order.Price, 64)
	if err != nil {
		return errors.NewValidationError("price", order.Price, "limit price is not a number")
	}
	return e.validator.ValidatePrice(price)
}
