package handlers

import (
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketer/internal/imagestore"
	"ticketer/internal/status"
	"ticketer/models"
)

// Ticket tier bounds enforced on create and update. The original form only
// checked these client-side; here they are part of the contract.
var (
	minTicketPrice    = decimal.NewFromInt(20000)
	maxTicketPrice    = decimal.NewFromInt(10000000)
	minTicketQuantity = 10
	maxTicketQuantity = 200
)

// EventHandler is the organizer-facing management surface.
type EventHandler struct {
	app            *pocketbase.PocketBase
	catalog        *CatalogHandler
	images         imagestore.Store
	maxUploadBytes int64
}

func NewEventHandler(app *pocketbase.PocketBase, catalog *CatalogHandler, images imagestore.Store, maxUploadBytes int64) *EventHandler {
	return &EventHandler{
		app:            app,
		catalog:        catalog,
		images:         images,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadImage - store the event image first, return its URL for the
// subsequent create/update call.
func (h *EventHandler) UploadImage(e *core.RequestEvent) error {
	if _, err := requireRole(e, RoleOrganizer); err != nil {
		return err
	}

	e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, h.maxUploadBytes)

	file, _, err := e.Request.FormFile("image")
	if err != nil {
		return apis.NewBadRequestError("Image file is required or exceeds the size limit", nil)
	}
	defer file.Close()

	url, err := h.images.Save(e.Request.Context(), file)
	if err != nil {
		return apis.NewBadRequestError("Could not process the uploaded image", nil)
	}

	return ok(e, map[string]string{"url": url})
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Host        string `json:"host"`
	Presenter   string `json:"presenter"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	VenueID     string `json:"venueId"`
	StaffID     string `json:"staffId"`
	ImageURL    string `json:"imageURL"`

	TicketPrice       *float64 `json:"ticketPrice"`
	TicketQuantity    *int     `json:"ticketQuantity"`
	TicketSaleEndDate string   `json:"ticketSaleEndDate"`
}

func (r eventRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Host, validation.Required),
		validation.Field(&r.StartDate, validation.Required, validation.Date(time.RFC3339)),
		validation.Field(&r.EndDate, validation.Required, validation.Date(time.RFC3339)),
		validation.Field(&r.VenueID, validation.Required),
	)
}

func validateTicketBounds(price decimal.Decimal, quantity int) error {
	errs := validation.Errors{}
	if price.LessThan(minTicketPrice) || price.GreaterThan(maxTicketPrice) {
		errs["ticketPrice"] = validation.NewError(
			"ticket_price_out_of_range",
			"must be between 20000 and 10000000")
	}
	if quantity < minTicketQuantity || quantity > maxTicketQuantity {
		errs["ticketQuantity"] = validation.NewError(
			"ticket_quantity_out_of_range",
			"must be between 10 and 200")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CreateEvent - create the event plus its single ticket tier
func (h *EventHandler) CreateEvent(e *core.RequestEvent) error {
	session, err := requireRole(e, RoleOrganizer)
	if err != nil {
		return err
	}

	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return apiError(e, err)
	}
	if req.TicketPrice == nil || req.TicketQuantity == nil {
		return apis.NewBadRequestError("Ticket price and quantity are required", nil)
	}

	price := decimal.NewFromFloat(*req.TicketPrice)
	if err := validateTicketBounds(price, *req.TicketQuantity); err != nil {
		return apiError(e, err)
	}

	start, _ := time.Parse(time.RFC3339, req.StartDate)
	end, _ := time.Parse(time.RFC3339, req.EndDate)
	start, end = models.NormalizeSchedule(start, end)

	var created *core.Record
	err = h.app.RunInTransaction(func(txApp core.App) error {
		eventsCol, err := txApp.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		record := core.NewRecord(eventsCol)
		record.Set("title", req.Title)
		record.Set("description", req.Description)
		record.Set("host", req.Host)
		record.Set("presenter", req.Presenter)
		record.Set("start_date", start)
		record.Set("end_date", end)
		record.Set("venue", req.VenueID)
		record.Set("staff", req.StaffID)
		record.Set("image_url", req.ImageURL)
		record.Set("status", string(models.EventReady))
		record.Set("organizer", session.UserID)

		if err := txApp.Save(record); err != nil {
			return err
		}

		ticketsCol, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		ticket := core.NewRecord(ticketsCol)
		ticket.Set("event", record.Id)
		ticket.Set("price", price.InexactFloat64())
		ticket.Set("quantity", *req.TicketQuantity)
		if req.TicketSaleEndDate != "" {
			if saleEnd, err := time.Parse(time.RFC3339, req.TicketSaleEndDate); err == nil {
				ticket.Set("ticket_sale_end_date", saleEnd)
			}
		}
		if err := txApp.Save(ticket); err != nil {
			return err
		}

		created = record
		return nil
	})
	if err != nil {
		// The image was uploaded before the record; drop it rather than
		// leaving an orphan behind.
		if req.ImageURL != "" {
			if rmErr := h.images.Remove(e.Request.Context(), req.ImageURL); rmErr != nil {
				slog.Warn("orphan image cleanup failed", "url", req.ImageURL, "error", rmErr)
			}
		}
		return apis.NewBadRequestError("Could not create the event", nil)
	}

	return ok(e, h.catalog.eventFromRecord(created, true))
}

// UpdateEvent - load current values, apply changes, same schedule rule.
// Only the owning organizer may update.
func (h *EventHandler) UpdateEvent(e *core.RequestEvent) error {
	session, err := requireRole(e, RoleOrganizer)
	if err != nil {
		return err
	}

	eventID := e.Request.PathValue("eventId")
	record, err := h.app.FindRecordById("events", eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}
	if record.GetString("organizer") != session.UserID {
		return apiError(e, status.ErrNotOwner)
	}

	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}

	if req.Title != "" {
		record.Set("title", req.Title)
	}
	if req.Description != "" {
		record.Set("description", req.Description)
	}
	if req.Host != "" {
		record.Set("host", req.Host)
	}
	if req.Presenter != "" {
		record.Set("presenter", req.Presenter)
	}
	if req.VenueID != "" {
		record.Set("venue", req.VenueID)
	}
	if req.StaffID != "" {
		record.Set("staff", req.StaffID)
	}
	if req.ImageURL != "" {
		record.Set("image_url", req.ImageURL)
	}

	start := record.GetDateTime("start_date").Time()
	end := record.GetDateTime("end_date").Time()
	if req.StartDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			return apis.NewBadRequestError("Invalid startDate", nil)
		}
		start = parsed
	}
	if req.EndDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return apis.NewBadRequestError("Invalid endDate", nil)
		}
		end = parsed
	}
	start, end = models.NormalizeSchedule(start, end)
	record.Set("start_date", start)
	record.Set("end_date", end)

	err = h.app.RunInTransaction(func(txApp core.App) error {
		if err := txApp.Save(record); err != nil {
			return err
		}

		if req.TicketPrice == nil && req.TicketQuantity == nil {
			return nil
		}

		tickets := []*core.Record{}
		err := txApp.RecordQuery("tickets").
			AndWhere(dbx.HashExp{"event": record.Id}).
			OrderBy("created ASC").
			Limit(1).
			All(&tickets)
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			return apis.NewNotFoundError("Event has no ticket tier to update", nil)
		}
		ticket := tickets[0]

		price := decimal.NewFromFloat(ticket.GetFloat("price"))
		quantity := ticket.GetInt("quantity")
		if req.TicketPrice != nil {
			price = decimal.NewFromFloat(*req.TicketPrice)
		}
		if req.TicketQuantity != nil {
			quantity = *req.TicketQuantity
		}
		if err := validateTicketBounds(price, quantity); err != nil {
			return err
		}

		ticket.Set("price", price.InexactFloat64())
		ticket.Set("quantity", quantity)
		return txApp.Save(ticket)
	})
	if err != nil {
		return apiError(e, err)
	}

	return ok(e, h.catalog.eventFromRecord(record, true))
}

// ListOrganizerEvents - the organizer's own events, any status
func (h *EventHandler) ListOrganizerEvents(e *core.RequestEvent) error {
	session, err := requireRole(e, RoleOrganizer)
	if err != nil {
		return err
	}

	organizerID := e.Request.PathValue("organizerId")
	if organizerID != session.UserID {
		return apis.NewForbiddenError("Access denied", nil)
	}

	records := []*core.Record{}
	err = h.app.RecordQuery("events").
		AndWhere(dbx.HashExp{"organizer": organizerID}).
		OrderBy("start_date DESC").
		All(&records)
	if err != nil {
		return apis.NewInternalServerError("Failed to load events", nil)
	}

	events := make([]*models.Event, 0, len(records))
	for _, record := range records {
		events = append(events, h.catalog.eventFromRecord(record, true))
	}

	return ok(e, events)
}
