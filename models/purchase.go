package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseState is the hand-off position of a purchase session. The wizard
// used to live in the browser's URL bar; it now lives server-side keyed by a
// generated purchase id, and only ever moves forward one step at a time.
type PurchaseState string

const (
	PurchaseTicketSelected     PurchaseState = "ticket_selected"
	PurchaseAttendeeRegistered PurchaseState = "attendee_registered"
	PurchasePaymentInitiated   PurchaseState = "payment_initiated"
	PurchaseCompleted          PurchaseState = "completed"
	PurchaseCancelled          PurchaseState = "cancelled"
)

type PurchaseSession struct {
	ID            string          `json:"purchase_id"`
	EventID       string          `json:"event_id"`
	TicketID      string          `json:"ticket_id"`
	Price         decimal.Decimal `json:"price"`
	Status        PurchaseState   `json:"status"`
	AttendeeID    string          `json:"attendee_id,omitempty"`
	AttendeeName  string          `json:"attendee_name,omitempty"`
	AttendeeEmail string          `json:"attendee_email,omitempty"`
	AttendeePhone string          `json:"attendee_phone,omitempty"`
	CheckoutURL   string          `json:"checkout_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	// RegistrationDate is when the attendee step was completed; zero until
	// the session reaches attendee_registered.
	RegistrationDate time.Time `json:"registration_date,omitempty"`
}

// NextState maps each forward step to the state it requires. Cancel is
// handled separately because it is reachable from every pre-completed state.
var NextState = map[PurchaseState]PurchaseState{
	PurchaseTicketSelected:     PurchaseAttendeeRegistered,
	PurchaseAttendeeRegistered: PurchasePaymentInitiated,
	PurchasePaymentInitiated:   PurchaseCompleted,
}

// Cancellable reports whether the session may still be cancelled.
func (s PurchaseState) Cancellable() bool {
	switch s {
	case PurchaseTicketSelected, PurchaseAttendeeRegistered, PurchasePaymentInitiated:
		return true
	}
	return false
}
