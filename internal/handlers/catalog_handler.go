package handlers

import (
	"strconv"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketer/models"
)

const defaultPageSize = 9

// CatalogHandler serves the public browsing surface: events, tickets,
// and the reference lists the organizer form needs.
type CatalogHandler struct {
	app *pocketbase.PocketBase
}

func NewCatalogHandler(app *pocketbase.PocketBase) *CatalogHandler {
	return &CatalogHandler{app: app}
}

// ListEvents - paginated event list with optional title search
func (h *CatalogHandler) ListEvents(e *core.RequestEvent) error {
	page, _ := strconv.Atoi(e.Request.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(e.Request.URL.Query().Get("pageSize"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	search := e.Request.URL.Query().Get("search")

	query := h.app.RecordQuery("events")
	countQuery := h.app.ConcurrentDB().Select("count(*)").From("events")
	if search != "" {
		match := dbx.Like("title", search)
		query.AndWhere(match)
		countQuery.AndWhere(match)
	}

	var total int
	if err := countQuery.Row(&total); err != nil {
		return apis.NewInternalServerError("Failed to load events", nil)
	}

	records := []*core.Record{}
	err := query.
		OrderBy("start_date DESC").
		Limit(int64(pageSize)).
		Offset(int64((page - 1) * pageSize)).
		All(&records)
	if err != nil {
		return apis.NewInternalServerError("Failed to load events", nil)
	}

	events := make([]*models.Event, 0, len(records))
	for _, record := range records {
		events = append(events, h.eventFromRecord(record, true))
	}

	totalPage := (total + pageSize - 1) / pageSize

	return ok(e, Pagination{
		Page:         page,
		TotalPage:    totalPage,
		TotalRecords: total,
		ListData:     events,
	})
}

// GetEvent - event detail with venue and ticket resolved
func (h *CatalogHandler) GetEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	record, err := h.app.FindRecordById("events", eventID)
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	return ok(e, h.eventFromRecord(record, true))
}

// ListEventTickets - the event's tiers with a computed sellable flag
func (h *CatalogHandler) ListEventTickets(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")

	if _, err := h.app.FindRecordById("events", eventID); err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	tickets, err := h.ticketsForEvent(eventID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load tickets", nil)
	}

	now := time.Now()
	type ticketView struct {
		models.Ticket
		Sellable bool `json:"sellable"`
	}
	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, ticketView{Ticket: t, Sellable: t.Sellable(now)})
	}

	return ok(e, views)
}

// ListVenues - reference list for the event form
func (h *CatalogHandler) ListVenues(e *core.RequestEvent) error {
	records, err := h.app.FindRecordsByFilter("venues", "id != ''", "name", 0, 0)
	if err != nil {
		return apis.NewInternalServerError("Failed to load venues", nil)
	}

	type venueView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Address  string `json:"address"`
		Capacity int    `json:"capacity"`
	}
	venues := make([]venueView, 0, len(records))
	for _, record := range records {
		venues = append(venues, venueView{
			ID:       record.Id,
			Name:     record.GetString("name"),
			Address:  record.GetString("address"),
			Capacity: record.GetInt("capacity"),
		})
	}

	return ok(e, venues)
}

// ListStaff - users with the staff role, for event assignment
func (h *CatalogHandler) ListStaff(e *core.RequestEvent) error {
	if _, err := requireRole(e, RoleOrganizer); err != nil {
		return err
	}

	records, err := h.app.FindRecordsByFilter("users", "role = {:role}", "name", 0, 0, dbx.Params{"role": RoleStaff})
	if err != nil {
		return apis.NewInternalServerError("Failed to load staff", nil)
	}

	type staffView struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	staff := make([]staffView, 0, len(records))
	for _, record := range records {
		staff = append(staff, staffView{
			ID:    record.Id,
			Name:  record.GetString("name"),
			Email: record.GetString("email"),
		})
	}

	return ok(e, staff)
}

func (h *CatalogHandler) ticketsForEvent(eventID string) ([]models.Ticket, error) {
	records := []*core.Record{}
	err := h.app.RecordQuery("tickets").
		AndWhere(dbx.HashExp{"event": eventID}).
		OrderBy("created ASC").
		All(&records)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(records))
	for _, record := range records {
		tickets = append(tickets, ticketFromRecord(record))
	}
	return tickets, nil
}

func ticketFromRecord(record *core.Record) models.Ticket {
	return models.Ticket{
		ID:                record.Id,
		EventID:           record.GetString("event"),
		Price:             decimal.NewFromFloat(record.GetFloat("price")),
		Quantity:          record.GetInt("quantity"),
		TicketSaleEndDate: record.GetDateTime("ticket_sale_end_date").Time(),
	}
}

// eventFromRecord maps a record to the API shape, deriving the
// schedule-driven status and optionally resolving relations.
func (h *CatalogHandler) eventFromRecord(record *core.Record, withRelations bool) *models.Event {
	start := record.GetDateTime("start_date").Time()
	end := record.GetDateTime("end_date").Time()

	event := &models.Event{
		ID:          record.Id,
		Title:       record.GetString("title"),
		Description: record.GetString("description"),
		Host:        record.GetString("host"),
		Presenter:   record.GetString("presenter"),
		StartDate:   start,
		EndDate:     end,
		VenueID:     record.GetString("venue"),
		StaffID:     record.GetString("staff"),
		ImageURL:    record.GetString("image_url"),
		Status:      models.DeriveStatus(models.EventStatus(record.GetString("status")), start, end, time.Now()),
		OrganizerID: record.GetString("organizer"),
	}

	if withRelations {
		if event.VenueID != "" {
			if venue, err := h.app.FindRecordById("venues", event.VenueID); err == nil {
				event.VenueName = venue.GetString("name")
			}
		}
		if tickets, err := h.ticketsForEvent(event.ID); err == nil && len(tickets) > 0 {
			ticket := tickets[0]
			event.Ticket = &ticket
		}
	}

	return event
}
