package models

import (
	"time"
)

// EventStatus values match the statuses the storefront renders. Ready and
// Pending are initial states, the rest are derived from the schedule.
type EventStatus string

const (
	EventReady     EventStatus = "Ready"
	EventPending   EventStatus = "Pending"
	EventActive    EventStatus = "Active"
	EventOnGoing   EventStatus = "OnGoing"
	EventEnded     EventStatus = "Ended"
	EventCancelled EventStatus = "Cancelled"
)

type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Host        string      `json:"host"`
	Presenter   string      `json:"presenter"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	VenueID     string      `json:"venueId"`
	VenueName   string      `json:"venueName"`
	StaffID     string      `json:"staffId"`
	ImageURL    string      `json:"imageURL"`
	Status      EventStatus `json:"status"`
	OrganizerID string      `json:"organizerId"`

	// Ticket is the event's single tier, resolved on list/detail reads.
	Ticket *Ticket `json:"ticket,omitempty"`
}

// MinEventDuration is the floor enforced between start and end.
const MinEventDuration = time.Hour

// NormalizeSchedule applies the minimum-duration rule: when end trails start
// by less than one hour the end is moved to exactly start+1h. A single
// conditional shift, so repeated edits never compound.
func NormalizeSchedule(start, end time.Time) (time.Time, time.Time) {
	if end.Sub(start) < MinEventDuration {
		return start, start.Add(MinEventDuration)
	}
	return start, end
}

// DeriveStatus computes the schedule-driven status. Cancelled is sticky and
// never recomputed; Ready/Pending collapse into Active once the event is
// published with a sellable ticket.
func DeriveStatus(current EventStatus, start, end, now time.Time) EventStatus {
	if current == EventCancelled {
		return EventCancelled
	}
	switch {
	case !now.Before(end):
		return EventEnded
	case !now.Before(start):
		return EventOnGoing
	default:
		if current == EventReady || current == EventPending {
			return current
		}
		return EventActive
	}
}
