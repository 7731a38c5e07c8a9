package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		tickets, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("attendees")

		collection.Fields.Add(
			&core.TextField{
				Name:     "name",
				Required: true,
				Max:      200,
			},
			&core.EmailField{
				Name:     "email",
				Required: true,
			},
			&core.TextField{
				Name: "phone",
				Max:  50,
			},
			&core.DateField{
				Name:     "registration_date",
				Required: true,
			},
			&core.RelationField{
				Name:         "ticket",
				CollectionId: tickets.Id,
				MaxSelect:    1,
				Required:     true,
			},
			&core.RelationField{
				Name:         "event",
				CollectionId: events.Id,
				MaxSelect:    1,
				Required:     true,
			},
			&core.TextField{
				Name: "purchase_id",
				Max:  64,
			},
			&core.TextField{
				Name: "transaction_id",
				Max:  64,
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("attendees")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
