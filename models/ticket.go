package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ticket struct {
	ID                string          `json:"id"`
	EventID           string          `json:"eventId"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	TicketSaleEndDate time.Time       `json:"ticketSaleEndDate"`
}

// Sellable reports whether the ticket still has inventory and its sale
// window is open. A zero sale-end date means no deadline was set.
func (t Ticket) Sellable(now time.Time) bool {
	if t.Quantity <= 0 {
		return false
	}
	if !t.TicketSaleEndDate.IsZero() && !now.Before(t.TicketSaleEndDate) {
		return false
	}
	return true
}

// PickSellable returns the first sellable ticket in tier order. The observed
// purchase flow auto-selects a single tier, so ordering is whatever the
// caller fetched; a quantity-0 ticket is never picked while a sellable one
// exists.
func PickSellable(tickets []Ticket, now time.Time) (Ticket, bool) {
	for _, t := range tickets {
		if t.Sellable(now) {
			return t, true
		}
	}
	return Ticket{}, false
}
