package services

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticketer/internal/status"
	"ticketer/models"
)

// RecordFinalizer writes the durable outcome of a completed purchase into
// the collections: one attendee record plus a conditional inventory
// decrement, both inside one transaction.
type RecordFinalizer struct {
	app core.App
}

func NewRecordFinalizer(app core.App) *RecordFinalizer {
	return &RecordFinalizer{app: app}
}

func (f *RecordFinalizer) Finalize(ctx context.Context, session *models.PurchaseSession, transactionID string) error {
	return f.app.RunInTransaction(func(txApp core.App) error {
		result, err := txApp.DB().
			NewQuery("UPDATE tickets SET quantity = quantity - 1 WHERE id = {:id} AND quantity > 0").
			Bind(dbx.Params{"id": session.TicketID}).
			Execute()
		if err != nil {
			return fmt.Errorf("decrement ticket quantity: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return status.ErrSoldOut
		}

		collection, err := txApp.FindCollectionByNameOrId("attendees")
		if err != nil {
			return err
		}

		registeredAt := session.RegistrationDate
		if registeredAt.IsZero() {
			registeredAt = session.CreatedAt
		}

		record := core.NewRecord(collection)
		record.Set("name", session.AttendeeName)
		record.Set("email", session.AttendeeEmail)
		record.Set("phone", session.AttendeePhone)
		record.Set("registration_date", registeredAt)
		record.Set("ticket", session.TicketID)
		record.Set("event", session.EventID)
		record.Set("purchase_id", session.ID)
		record.Set("transaction_id", transactionID)

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return fmt.Errorf("save attendee record: %w", err)
		}

		return nil
	})
}
