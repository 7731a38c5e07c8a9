package models

import (
	"time"

	"ticketer/internal/status"
)

type BoothRequestStatus string

const (
	BoothPending  BoothRequestStatus = "Pending"
	BoothApproved BoothRequestStatus = "Approved"
	BoothRejected BoothRequestStatus = "Rejected"
)

type BoothRequest struct {
	ID          string             `json:"id"`
	SponsorID   string             `json:"sponsorId"`
	SponsorName string             `json:"sponsorName"`
	BoothID     string             `json:"boothId"`
	BoothName   string             `json:"boothName"`
	EventID     string             `json:"eventId"`
	RequestDate time.Time          `json:"requestDate"`
	Status      BoothRequestStatus `json:"status"`
}

// ValidateDecision checks a single status transition: only Pending requests
// move, and only to Approved or Rejected.
func ValidateDecision(current, next BoothRequestStatus) error {
	if current != BoothPending {
		return status.ErrNotPending
	}
	if next != BoothApproved && next != BoothRejected {
		return status.ErrInvalidTransition
	}
	return nil
}
