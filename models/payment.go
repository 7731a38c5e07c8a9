package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentNotification struct {
	PurchaseID    string          `json:"purchase_id"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}
