package models

import (
	"time"
)

type Attendee struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	RegistrationDate time.Time `json:"registrationDate"`
	TicketID         string    `json:"ticketId"`
	EventID          string    `json:"eventId"`
	PurchaseID       string    `json:"purchaseId"`
}
