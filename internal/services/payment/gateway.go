package payment

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// Provider identifies a payment provider implementation.
type Provider string

const (
	ProviderVNPay Provider = "vnpay"
	ProviderMock  Provider = "mock"
)

// CheckoutRequest carries everything a provider needs to start a hosted
// payment for one purchase.
type CheckoutRequest struct {
	PurchaseID string          `json:"purchase_id"`
	AttendeeID string          `json:"attendee_id"`
	Amount     decimal.Decimal `json:"amount"`
	OrderInfo  string          `json:"order_info,omitempty"`
	ClientIP   string          `json:"client_ip,omitempty"`
}

// Checkout is the provider's answer: the URL the browser is redirected to.
type Checkout struct {
	Provider Provider `json:"provider"`
	URL      string   `json:"url"`
}

// CallbackResult is a verified provider callback, keyed back to the purchase.
type CallbackResult struct {
	PurchaseID    string          `json:"purchase_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Success       bool            `json:"success"`
}

// TransactionStatus is the provider-side view of a transaction.
type TransactionStatus struct {
	PurchaseID    string          `json:"purchase_id"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     int64           `json:"timestamp"`
}

// Gateway is the common interface all payment providers conform to.
type Gateway interface {
	// Provider returns the provider type.
	Provider() Provider

	// CreateCheckout starts a hosted payment and returns the redirect URL.
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error)

	// VerifyCallback authenticates a provider callback's parameters.
	VerifyCallback(values url.Values) (*CallbackResult, error)

	// CheckTransaction queries the provider for a transaction's status.
	CheckTransaction(ctx context.Context, purchaseID string) (*TransactionStatus, error)

	// Close gracefully closes any connections.
	Close(ctx context.Context) error
}

// Registry manages the configured gateways and a primary provider.
type Registry struct {
	gateways map[Provider]Gateway
	primary  Provider
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[Provider]Gateway)}
}

// Register adds a gateway; the first registered becomes primary.
func (r *Registry) Register(gw Gateway) {
	r.gateways[gw.Provider()] = gw
	if r.primary == "" {
		r.primary = gw.Provider()
	}
}

func (r *Registry) Get(provider Provider) (Gateway, error) {
	gw, exists := r.gateways[provider]
	if !exists {
		return nil, fmt.Errorf("payment provider %s not registered", provider)
	}
	return gw, nil
}

func (r *Registry) Primary() (Gateway, error) {
	if r.primary == "" {
		return nil, fmt.Errorf("no payment provider configured")
	}
	return r.Get(r.primary)
}

// Close closes all registered gateways, logging nothing: callers decide.
func (r *Registry) Close(ctx context.Context) error {
	var firstErr error
	for _, gw := range r.gateways {
		if err := gw.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
