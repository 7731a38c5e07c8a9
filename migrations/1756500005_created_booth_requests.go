package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		booths, err := app.FindCollectionByNameOrId("booths")
		if err != nil {
			return err
		}
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("booth_requests")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "sponsor",
				CollectionId: users.Id,
				MaxSelect:    1,
				Required:     true,
			},
			&core.RelationField{
				Name:          "booth",
				CollectionId:  booths.Id,
				MaxSelect:     1,
				Required:      true,
				CascadeDelete: true,
			},
			&core.DateField{
				Name:     "request_date",
				Required: true,
			},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"Pending", "Approved", "Rejected"},
				MaxSelect: 1,
				Required:  true,
			},
			&core.DateField{
				Name: "decided_at",
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
		collection, err := app.FindCollectionByNameOrId("booth_requests")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
