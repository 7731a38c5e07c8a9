package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"ticketer/internal/status"
)

// MockGateway is a development stand-in used when no real provider is
// configured. It hands the browser to a local confirmation page and
// accepts callbacks signed with a shared token.
type MockGateway struct {
	baseURL string
	token   string
}

func NewMockGateway(baseURL, token string) *MockGateway {
	if token == "" {
		token = "dev-secret"
	}
	return &MockGateway{baseURL: baseURL, token: token}
}

func (m *MockGateway) Provider() Provider {
	return ProviderMock
}

func (m *MockGateway) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	q := url.Values{}
	q.Set("purchase_id", req.PurchaseID)
	q.Set("amount", req.Amount.String())
	q.Set("token", m.token)

	return &Checkout{
		Provider: ProviderMock,
		URL:      m.baseURL + "/mock-pay?" + q.Encode(),
	}, nil
}

func (m *MockGateway) VerifyCallback(values url.Values) (*CallbackResult, error) {
	if values.Get("token") != m.token {
		return nil, status.ErrBadSignature
	}

	amount := decimal.Zero
	if raw := values.Get("amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("mock gateway: invalid amount %q", raw)
		}
		amount = parsed
	}

	return &CallbackResult{
		PurchaseID:    values.Get("purchase_id"),
		TransactionID: "MOCK-" + values.Get("purchase_id"),
		Amount:        amount,
		Success:       values.Get("result") != "fail",
	}, nil
}

func (m *MockGateway) CheckTransaction(ctx context.Context, purchaseID string) (*TransactionStatus, error) {
	return &TransactionStatus{
		PurchaseID:    purchaseID,
		TransactionID: "MOCK-" + purchaseID,
		Status:        "00",
		Timestamp:     time.Now().Unix(),
	}, nil
}

func (m *MockGateway) Close(ctx context.Context) error {
	return nil
}
