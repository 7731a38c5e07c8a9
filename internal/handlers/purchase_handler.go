package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketer/internal/services"
	"ticketer/internal/status"
	"ticketer/models"
)

// PurchaseHandler drives the server-side purchase hand-off. All endpoints
// are public: buying a ticket requires no account.
type PurchaseHandler struct {
	app      *pocketbase.PocketBase
	catalog  *CatalogHandler
	purchase *services.PurchaseService
}

func NewPurchaseHandler(app *pocketbase.PocketBase, catalog *CatalogHandler, purchase *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		app:      app,
		catalog:  catalog,
		purchase: purchase,
	}
}

type startPurchaseRequest struct {
	EventID string `json:"event_id"`
}

func (r startPurchaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EventID, validation.Required),
	)
}

// StartPurchase - open a session for the event's first sellable ticket
func (h *PurchaseHandler) StartPurchase(e *core.RequestEvent) error {
	var req startPurchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return apiError(e, err)
	}

	if _, err := h.app.FindRecordById("events", req.EventID); err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}

	tickets, err := h.catalog.ticketsForEvent(req.EventID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load tickets", nil)
	}

	session, err := h.purchase.StartPurchase(e.Request.Context(), req.EventID, tickets)
	if err != nil {
		return apiError(e, err)
	}

	return ok(e, map[string]any{
		"purchase_id": session.ID,
		"ticket_id":   session.TicketID,
		"price":       session.Price,
		"status":      session.Status,
	})
}

type attendeeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (r attendeeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Phone, validation.Required),
	)
}

// RegisterAttendee - attach attendee details; session advances only on success
func (h *PurchaseHandler) RegisterAttendee(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	var req attendeeRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return apiError(e, err)
	}

	attendeeID, err := h.purchase.RegisterAttendee(e.Request.Context(), purchaseID, &models.Attendee{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		RegistrationDate: time.Now(),
	})
	if err != nil {
		return apiError(e, err)
	}

	return ok(e, map[string]any{
		"purchase_id": purchaseID,
		"attendee_id": attendeeID,
		"status":      models.PurchaseAttendeeRegistered,
	})
}

// Checkout - request the provider redirect URL
func (h *PurchaseHandler) Checkout(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	checkout, err := h.purchase.Checkout(e.Request.Context(), purchaseID, e.RealIP())
	if err != nil {
		return apiError(e, err)
	}

	return ok(e, map[string]any{
		"purchase_id":  purchaseID,
		"checkout_url": checkout.URL,
		"provider":     checkout.Provider,
		"status":       models.PurchasePaymentInitiated,
	})
}

// GetPurchase - session inspection for the confirm page
func (h *PurchaseHandler) GetPurchase(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	session, err := h.purchase.GetSession(e.Request.Context(), purchaseID)
	if err != nil {
		return apiError(e, err)
	}

	return ok(e, session)
}

// CancelPurchase - abandon the session; allowed until completed
func (h *PurchaseHandler) CancelPurchase(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	if err := h.purchase.Cancel(e.Request.Context(), purchaseID); err != nil {
		return apiError(e, err)
	}

	return okMessage(e, map[string]any{
		"purchase_id": purchaseID,
		"status":      models.PurchaseCancelled,
	}, "Purchase cancelled")
}

// VNPayIPN - provider server-to-server callback. VNPay expects its own
// {RspCode, Message} answer shape here, not the API envelope.
func (h *PurchaseHandler) VNPayIPN(e *core.RequestEvent) error {
	gateway, err := h.purchase.Gateway("vnpay")
	if err != nil {
		return e.JSON(http.StatusOK, map[string]string{"RspCode": "99", "Message": "Provider not configured"})
	}

	result, err := gateway.VerifyCallback(e.Request.URL.Query())
	if err != nil {
		slog.Warn("rejected payment callback", "error", err)
		return e.JSON(http.StatusOK, map[string]string{"RspCode": "97", "Message": "Invalid signature"})
	}

	if err := h.purchase.CompletePayment(e.Request.Context(), result); err != nil {
		slog.Error("apply payment callback", "purchase_id", result.PurchaseID, "error", err)
		if errors.Is(err, status.ErrInvalidTransition) || errors.Is(err, status.ErrPurchaseNotFound) {
			return e.JSON(http.StatusOK, map[string]string{"RspCode": "02", "Message": "Order already confirmed or not found"})
		}
		// Transient failures answer 99 so the provider retries the IPN.
		return e.JSON(http.StatusOK, map[string]string{"RspCode": "99", "Message": "Confirm failed"})
	}

	return e.JSON(http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm success"})
}

type simulatePaymentRequest struct {
	PurchaseID string `json:"purchase_id"`
	Status     string `json:"status"`
}

// SimulatePayment - dev-only: publish a payment notification as the
// provider would, then let the subscription loop consume it.
func (h *PurchaseHandler) SimulatePayment(e *core.RequestEvent) error {
	var req simulatePaymentRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	if req.PurchaseID == "" {
		return apis.NewBadRequestError("purchase_id is required", nil)
	}
	if req.Status == "" {
		req.Status = "success"
	}

	if err := h.purchase.PublishPaymentNotification(req.PurchaseID, req.Status); err != nil {
		return apiError(e, err)
	}

	return okMessage(e, map[string]any{"purchase_id": req.PurchaseID}, "Payment notification published")
}
