package payment

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"ticketer/internal/services/payment/vnpay"
	"ticketer/internal/status"
)

// VNPayAdapter adapts the vnpay client to the Gateway interface.
type VNPayAdapter struct {
	client *vnpay.Client
}

func NewVNPayAdapter(cfg *vnpay.Config) (*VNPayAdapter, error) {
	client, err := vnpay.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init vnpay client: %w", err)
	}
	return &VNPayAdapter{client: client}, nil
}

func (a *VNPayAdapter) Provider() Provider {
	return ProviderVNPay
}

func (a *VNPayAdapter) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Ticket purchase " + req.PurchaseID
	}

	payURL, err := a.client.BuildPaymentURL(&vnpay.PaymentForm{
		TxnRef:    req.PurchaseID,
		Amount:    req.Amount,
		OrderInfo: orderInfo,
		ClientIP:  req.ClientIP,
	})
	if err != nil {
		return nil, fmt.Errorf("build vnpay payment url: %w", err)
	}

	return &Checkout{
		Provider: ProviderVNPay,
		URL:      payURL,
	}, nil
}

func (a *VNPayAdapter) VerifyCallback(values url.Values) (*CallbackResult, error) {
	data, err := a.client.VerifyCallback(values)
	if err != nil {
		return nil, status.ErrBadSignature
	}

	return &CallbackResult{
		PurchaseID:    data.TxnRef,
		TransactionID: data.TransactionNo,
		Amount:        data.Amount,
		Success:       data.Succeeded(),
	}, nil
}

func (a *VNPayAdapter) CheckTransaction(ctx context.Context, purchaseID string) (*TransactionStatus, error) {
	tx, err := a.client.QueryTransaction(ctx, purchaseID, purchaseID, "127.0.0.1")
	if err != nil {
		return nil, fmt.Errorf("vnpay querydr: %w", err)
	}

	return &TransactionStatus{
		PurchaseID:    tx.TxnRef,
		TransactionID: tx.TransactionNo,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Timestamp:     time.Now().Unix(),
	}, nil
}

func (a *VNPayAdapter) Close(ctx context.Context) error {
	return nil
}
