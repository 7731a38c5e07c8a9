package handlers

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketer/internal/status"
	"ticketer/models"
	"ticketer/monitoring"
)

// BoothHandler covers sponsor booth requests and the organizer review flow.
type BoothHandler struct {
	app     *pocketbase.PocketBase
	monitor *monitoring.Monitor
}

func NewBoothHandler(app *pocketbase.PocketBase, monitor *monitoring.Monitor) *BoothHandler {
	return &BoothHandler{app: app, monitor: monitor}
}

// ListBoothRequests - requests for one event, sponsor and booth resolved
func (h *BoothHandler) ListBoothRequests(e *core.RequestEvent) error {
	if _, err := requireRole(e, RoleOrganizer); err != nil {
		return err
	}

	eventID := e.Request.PathValue("eventId")
	if _, err := h.app.FindRecordById("events", eventID); err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	boothRecords := []*core.Record{}
	err := h.app.RecordQuery("booths").
		AndWhere(dbx.HashExp{"event": eventID}).
		All(&boothRecords)
	if err != nil {
		return apis.NewInternalServerError("Failed to load booths", nil)
	}

	boothIDs := make([]any, 0, len(boothRecords))
	boothNames := make(map[string]string, len(boothRecords))
	for _, booth := range boothRecords {
		boothIDs = append(boothIDs, booth.Id)
		boothNames[booth.Id] = booth.GetString("name")
	}

	requests := make([]models.BoothRequest, 0)
	if len(boothIDs) > 0 {
		requestRecords := []*core.Record{}
		err = h.app.RecordQuery("booth_requests").
			AndWhere(dbx.In("booth", boothIDs...)).
			OrderBy("request_date DESC").
			All(&requestRecords)
		if err != nil {
			return apis.NewInternalServerError("Failed to load booth requests", nil)
		}

		for _, record := range requestRecords {
			request := boothRequestFromRecord(record, eventID)
			request.BoothName = boothNames[request.BoothID]
			if sponsor, err := h.app.FindRecordById("users", request.SponsorID); err == nil {
				request.SponsorName = sponsor.GetString("name")
			}
			requests = append(requests, request)
		}
	}

	return ok(e, requests)
}

type boothDecisionRequest struct {
	Status string `json:"status"`
}

func (r boothDecisionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required,
			validation.In(string(models.BoothApproved), string(models.BoothRejected))),
	)
}

// DecideBoothRequest - approve or reject a pending request. The update is
// conditional on the row still being Pending, so a repeated click or a
// concurrent reviewer loses cleanly.
func (h *BoothHandler) DecideBoothRequest(e *core.RequestEvent) error {
	if _, err := requireRole(e, RoleOrganizer); err != nil {
		return err
	}

	requestID := e.Request.PathValue("requestId")

	var req boothDecisionRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return apiError(e, err)
	}

	record, err := h.app.FindRecordById("booth_requests", requestID)
	if err != nil {
		return apis.NewNotFoundError("Booth request not found", nil)
	}

	next := models.BoothRequestStatus(req.Status)
	if err := models.ValidateDecision(models.BoothRequestStatus(record.GetString("status")), next); err != nil {
		return apiError(e, err)
	}

	result, err := h.app.DB().
		NewQuery("UPDATE booth_requests SET status = {:status}, decided_at = {:now} WHERE id = {:id} AND status = {:pending}").
		Bind(dbx.Params{
			"status":  string(next),
			"now":     time.Now().UTC().Format(time.RFC3339),
			"id":      requestID,
			"pending": string(models.BoothPending),
		}).
		Execute()
	if err != nil {
		return apis.NewInternalServerError("Failed to update booth request", nil)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return apiError(e, status.ErrNotPending)
	}

	if h.monitor != nil {
		h.monitor.TrackBoothDecision(req.Status)
	}

	return okMessage(e, map[string]any{
		"request_id": requestID,
		"status":     next,
	}, "Booth request updated")
}

type boothRequestCreate struct {
	BoothID string `json:"boothId"`
}

func (r boothRequestCreate) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BoothID, validation.Required),
	)
}

// CreateBoothRequest - sponsor files a request for a booth
func (h *BoothHandler) CreateBoothRequest(e *core.RequestEvent) error {
	session, err := requireRole(e, RoleSponsor)
	if err != nil {
		return err
	}

	var req boothRequestCreate
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return apiError(e, err)
	}

	if _, err := h.app.FindRecordById("booths", req.BoothID); err != nil {
		return apis.NewNotFoundError("Booth not found", nil)
	}

	collection, err := h.app.FindCollectionByNameOrId("booth_requests")
	if err != nil {
		return apis.NewInternalServerError("Failed to create booth request", nil)
	}

	record := core.NewRecord(collection)
	record.Set("sponsor", session.UserID)
	record.Set("booth", req.BoothID)
	record.Set("request_date", time.Now())
	record.Set("status", string(models.BoothPending))

	if err := h.app.Save(record); err != nil {
		return apis.NewInternalServerError("Failed to create booth request", nil)
	}

	return ok(e, boothRequestFromRecord(record, ""))
}

func boothRequestFromRecord(record *core.Record, eventID string) models.BoothRequest {
	return models.BoothRequest{
		ID:          record.Id,
		SponsorID:   record.GetString("sponsor"),
		BoothID:     record.GetString("booth"),
		EventID:     eventID,
		RequestDate: record.GetDateTime("request_date").Time(),
		Status:      models.BoothRequestStatus(record.GetString("status")),
	}
}
