package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		venues, err := app.FindCollectionByNameOrId("venues")
		if err != nil {
			return err
		}
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{
				Name:     "title",
				Required: true,
				Max:      200,
			},
			&core.TextField{
				Name: "description",
				Max:  5000,
			},
			&core.TextField{
				Name: "host",
				Max:  200,
			},
			&core.TextField{
				Name: "presenter",
				Max:  200,
			},
			&core.DateField{
				Name:     "start_date",
				Required: true,
			},
			&core.DateField{
				Name:     "end_date",
				Required: true,
			},
			&core.RelationField{
				Name:         "venue",
				CollectionId: venues.Id,
				MaxSelect:    1,
			},
			&core.RelationField{
				Name:         "staff",
				CollectionId: users.Id,
				MaxSelect:    1,
			},
			&core.URLField{
				Name: "image_url",
			},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"Ready", "Pending", "Active", "OnGoing", "Ended", "Cancelled"},
				MaxSelect: 1,
			},
			&core.RelationField{
				Name:         "organizer",
				CollectionId: users.Id,
				MaxSelect:    1,
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
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
