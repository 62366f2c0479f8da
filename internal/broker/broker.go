// Package broker provides brokerage integration interfaces and implementations.
package broker

import (
	"context"

	"wheel-trader/internal/models"
)

// Broker defines the brokerage operations used by the wheel pipeline.
type Broker interface {
	// Authentication
	Login(ctx context.Context) (*models.Session, error)

	// Account
	GetBalance(ctx context.Context) (*models.Balance, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetOrders(ctx context.Context, status string) ([]models.LiveOrder, error)

	// Instruments
	GetOptionChain(ctx context.Context, symbol string) (*models.ChainResponse, error)
	GetEquity(ctx context.Context, symbol string) (*models.Equity, error)

	// Orders
	DryRunOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error)
	SubmitOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Order status filters accepted by GetOrders.
const (
	OrderStatusLive = "Live"
)

// Environment base URLs.
const (
	ProductionBaseURL = "https://api.tastyworks.com"
	SandboxBaseURL    = "https://api.cert.tastyworks.com"
)

// BaseURLFor returns the API base URL for the environment.
func BaseURLFor(sandbox bool) string {
	if sandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}
