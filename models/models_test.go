package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ticketer/internal/status"
)

func TestPickSellable_SkipsSoldOutTiers(t *testing.T) {
	now := time.Now()
	tickets := []Ticket{
		{ID: "t1", Quantity: 0, Price: decimal.NewFromInt(50000)},
		{ID: "t2", Quantity: 3, Price: decimal.NewFromInt(80000)},
	}

	picked, ok := PickSellable(tickets, now)

	assert.True(t, ok)
	assert.Equal(t, "t2", picked.ID)
}

func TestPickSellable_AllSoldOut(t *testing.T) {
	now := time.Now()
	tickets := []Ticket{
		{ID: "t1", Quantity: 0},
		{ID: "t2", Quantity: 0},
	}

	_, ok := PickSellable(tickets, now)

	assert.False(t, ok)
}

func TestPickSellable_RespectsSaleDeadline(t *testing.T) {
	now := time.Now()
	tickets := []Ticket{
		{ID: "t1", Quantity: 5, TicketSaleEndDate: now.Add(-time.Hour)},
		{ID: "t2", Quantity: 5, TicketSaleEndDate: now.Add(time.Hour)},
	}

	picked, ok := PickSellable(tickets, now)

	assert.True(t, ok)
	assert.Equal(t, "t2", picked.ID)
}

func TestTicket_Sellable_NoDeadline(t *testing.T) {
	ticket := Ticket{Quantity: 1}
	assert.True(t, ticket.Sellable(time.Now()))
}

func TestNormalizeSchedule_ShortDurationExtended(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	gotStart, gotEnd := NormalizeSchedule(start, end)

	assert.Equal(t, start, gotStart)
	assert.Equal(t, start.Add(time.Hour), gotEnd)
}

func TestNormalizeSchedule_LongDurationUnchanged(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	gotStart, gotEnd := NormalizeSchedule(start, end)

	assert.Equal(t, start, gotStart)
	assert.Equal(t, end, gotEnd)
}

func TestNormalizeSchedule_RepeatedEditsDoNotCompound(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	_, end = NormalizeSchedule(start, end)
	_, end2 := NormalizeSchedule(start, end)
	_, end3 := NormalizeSchedule(start, end2)

	assert.Equal(t, start.Add(time.Hour), end)
	assert.Equal(t, end, end2)
	assert.Equal(t, end, end3)
}

func TestNormalizeSchedule_ExactlyOneHourUnchanged(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	_, gotEnd := NormalizeSchedule(start, end)

	assert.Equal(t, end, gotEnd)
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		current EventStatus
		start   time.Time
		end     time.Time
		want    EventStatus
	}{
		{"cancelled is sticky", EventCancelled, now.Add(time.Hour), now.Add(2 * time.Hour), EventCancelled},
		{"past end is ended", EventActive, now.Add(-3 * time.Hour), now.Add(-time.Hour), EventEnded},
		{"in window is ongoing", EventActive, now.Add(-time.Hour), now.Add(time.Hour), EventOnGoing},
		{"ready preserved before start", EventReady, now.Add(time.Hour), now.Add(2 * time.Hour), EventReady},
		{"pending preserved before start", EventPending, now.Add(time.Hour), now.Add(2 * time.Hour), EventPending},
		{"published stays active before start", EventActive, now.Add(time.Hour), now.Add(2 * time.Hour), EventActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.current, tt.start, tt.end, now))
		})
	}
}

func TestPurchaseState_Cancellable(t *testing.T) {
	assert.True(t, PurchaseTicketSelected.Cancellable())
	assert.True(t, PurchaseAttendeeRegistered.Cancellable())
	assert.True(t, PurchasePaymentInitiated.Cancellable())
	assert.False(t, PurchaseCompleted.Cancellable())
	assert.False(t, PurchaseCancelled.Cancellable())
}

func TestNextState_ForwardOnly(t *testing.T) {
	assert.Equal(t, PurchaseAttendeeRegistered, NextState[PurchaseTicketSelected])
	assert.Equal(t, PurchasePaymentInitiated, NextState[PurchaseAttendeeRegistered])
	assert.Equal(t, PurchaseCompleted, NextState[PurchasePaymentInitiated])

	_, hasNext := NextState[PurchaseCompleted]
	assert.False(t, hasNext)
}

func TestValidateDecision(t *testing.T) {
	assert.NoError(t, ValidateDecision(BoothPending, BoothApproved))
	assert.NoError(t, ValidateDecision(BoothPending, BoothRejected))

	assert.ErrorIs(t, ValidateDecision(BoothApproved, BoothRejected), status.ErrNotPending)
	assert.ErrorIs(t, ValidateDecision(BoothRejected, BoothApproved), status.ErrNotPending)
	assert.ErrorIs(t, ValidateDecision(BoothPending, BoothPending), status.ErrInvalidTransition)
}
