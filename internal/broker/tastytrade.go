package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// TastytradeConfig holds configuration for the Tastytrade broker.
type TastytradeConfig struct {
	ClientConfig
	Sandbox       bool
	AccountNumber string
}

// Tastytrade implements the Broker interface for the Tastytrade REST API.
type Tastytrade struct {
	client  *Client
	account string
	sandbox bool
	logger  zerolog.Logger
}

// NewTastytrade creates a new Tastytrade broker. An empty BaseURL selects the
// sandbox or production host.
func NewTastytrade(cfg TastytradeConfig, logger zerolog.Logger) *Tastytrade {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURLFor(cfg.Sandbox)
	}
	logger = logger.With().Str("broker", "tastytrade").Logger()
	return &Tastytrade{
		client:  NewClient(cfg.ClientConfig, logger),
		account: cfg.AccountNumber,
		sandbox: cfg.Sandbox,
		logger:  logger,
	}
}

// Client returns the underlying REST client.
func (t *Tastytrade) Client() *Client {
	return t.client
}

// Sandbox reports whether the broker targets the certification environment.
func (t *Tastytrade) Sandbox() bool {
	return t.sandbox
}

// AccountNumber returns the configured account number.
func (t *Tastytrade) AccountNumber() string {
	return t.account
}

// Login forces a fresh session.
func (t *Tastytrade) Login(ctx context.Context) (*models.Session, error) {
	return t.client.Sessions().Refresh(ctx)
}

type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// orderResponse mirrors the dry-run and submit payloads.
type orderResponse struct {
	Order             models.LiveOrder          `json:"order"`
	Warnings          []models.OrderWarning     `json:"warnings"`
	BuyingPowerEffect *models.BuyingPowerEffect `json:"buying-power-effect"`
	FeeCalculation    *models.FeeCalculation    `json:"fee-calculation"`
}

func (t *Tastytrade) accountPath(suffix string) (string, error) {
	if t.account == "" {
		return "", fmt.Errorf("account number: %w", errors.ErrMissingCredentials)
	}
	return "/accounts/" + url.PathEscape(t.account) + suffix, nil
}

// GetBalance returns the account balances.
func (t *Tastytrade) GetBalance(ctx context.Context) (*models.Balance, error) {
	path, err := t.accountPath("/balances")
	if err != nil {
		return nil, err
	}
	var balance models.Balance
	if err := t.client.Request(ctx, http.MethodGet, path, nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetPositions returns the open positions.
func (t *Tastytrade) GetPositions(ctx context.Context) ([]models.Position, error) {
	path, err := t.accountPath("/positions")
	if err != nil {
		return nil, err
	}
	var out itemsEnvelope[models.Position]
	if err := t.client.Request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetOrders returns the account's orders with the given status.
func (t *Tastytrade) GetOrders(ctx context.Context, status string) ([]models.LiveOrder, error) {
	if status == "" {
		status = OrderStatusLive
	}
	path, err := t.accountPath("/orders?status=" + url.QueryEscape(status))
	if err != nil {
		return nil, err
	}
	var out itemsEnvelope[models.LiveOrder]
	if err := t.client.Request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetOptionChain returns the nested option chain for an underlying.
func (t *Tastytrade) GetOptionChain(ctx context.Context, symbol string) (*models.ChainResponse, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var chain models.ChainResponse
	if err := t.client.Request(ctx, http.MethodGet, "/option-chains/"+url.PathEscape(symbol)+"/nested", nil, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

// GetEquity returns instrument details for an equity.
func (t *Tastytrade) GetEquity(ctx context.Context, symbol string) (*models.Equity, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var equity models.Equity
	if err := t.client.Request(ctx, http.MethodGet, "/instruments/equities/"+url.PathEscape(symbol), nil, &equity); err != nil {
		return nil, err
	}
	return &equity, nil
}

// DryRunOrder asks the brokerage to validate an order without placing it.
func (t *Tastytrade) DryRunOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	return t.postOrder(ctx, "/orders/dry-run", order)
}

// SubmitOrder places an order.
func (t *Tastytrade) SubmitOrder(ctx context.Context, order *models.Order) (*models.OrderResult, error) {
	return t.postOrder(ctx, "/orders", order)
}

func (t *Tastytrade) postOrder(ctx context.Context, suffix string, order *models.Order) (*models.OrderResult, error) {
	if order == nil || len(order.Legs) == 0 {
		return nil, errors.ErrInvalidOrder
	}
	path, err := t.accountPath(suffix)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := t.client.Request(ctx, http.MethodPost, path, order, &raw); err != nil {
		return nil, err
	}

	var resp orderResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("decoding order response: %w", err)
		}
	}
	return &models.OrderResult{
		Order:             resp.Order,
		Warnings:          resp.Warnings,
		BuyingPowerEffect: resp.BuyingPowerEffect,
		FeeCalculation:    resp.FeeCalculation,
		Raw:               raw,
	}, nil
}

// CancelOrder cancels a live order.
func (t *Tastytrade) CancelOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.NewValidationError("order_id", orderID, "cannot be empty")
	}
	path, err := t.accountPath("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return err
	}
	return t.client.Request(ctx, http.MethodDelete, path, nil, nil)
}

var _ Broker = (*Tastytrade)(nil)
