// Package handlers exposes the REST surface. Responses use the storefront's
// API envelope; errors are translated to sanitized, categorized messages so
// backend and provider phrasing never reaches clients.
package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"

	"ticketer/internal/status"
)

// Envelope is the response shape every endpoint returns.
type Envelope struct {
	Success       bool     `json:"success"`
	Data          any      `json:"data,omitempty"`
	Message       string   `json:"message,omitempty"`
	ErrorMessages []string `json:"errorMessages,omitempty"`
}

// Pagination wraps list payloads.
type Pagination struct {
	Page         int `json:"page"`
	TotalPage    int `json:"totalPage"`
	TotalRecords int `json:"totalRecords"`
	ListData     any `json:"listData"`
}

func ok(e *core.RequestEvent, data any) error {
	return e.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func okMessage(e *core.RequestEvent, data any, message string) error {
	return e.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Roles recognized on user records.
const (
	RoleOrganizer = "organizer"
	RoleStaff     = "staff"
	RoleSponsor   = "sponsor"
)

// Session is the authenticated caller, resolved from the request token.
type Session struct {
	UserID string
	Role   string
}

func sessionFrom(e *core.RequestEvent) (*Session, error) {
	if e.Auth == nil {
		return nil, apis.NewUnauthorizedError("Authentication required", nil)
	}
	return &Session{
		UserID: e.Auth.Id,
		Role:   e.Auth.GetString("role"),
	}, nil
}

func requireRole(e *core.RequestEvent, role string) (*Session, error) {
	session, err := sessionFrom(e)
	if err != nil {
		return nil, err
	}
	if session.Role != role {
		return nil, apis.NewForbiddenError("Access denied for this role", nil)
	}
	return session, nil
}

// apiError maps internal failures to envelope errors. Unknown errors become
// a generic 500 so internal detail stays internal.
func apiError(e *core.RequestEvent, err error) error {
	var apiErr *router.ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		messages := make([]string, 0, len(verrs))
		for field, ferr := range verrs {
			messages = append(messages, field+": "+ferr.Error())
		}
		return e.JSON(http.StatusBadRequest, Envelope{
			Success:       false,
			Message:       "Validation failed",
			ErrorMessages: messages,
		})
	}

	switch {
	case errors.Is(err, status.ErrSoldOut):
		return envelopeError(e, http.StatusConflict, "Tickets are sold out for this event")
	case errors.Is(err, status.ErrPurchaseNotFound):
		return envelopeError(e, http.StatusNotFound, "Purchase session not found or expired")
	case errors.Is(err, status.ErrInvalidTransition):
		return envelopeError(e, http.StatusConflict, "This step is not available in the current state")
	case errors.Is(err, status.ErrPaymentDeclined):
		return envelopeError(e, http.StatusBadGateway, "Payment was not completed")
	case errors.Is(err, status.ErrBadSignature):
		return envelopeError(e, http.StatusBadRequest, "Invalid payment callback")
	case errors.Is(err, status.ErrNotPending):
		return envelopeError(e, http.StatusConflict, "Request has already been decided")
	case errors.Is(err, status.ErrNotOwner):
		return envelopeError(e, http.StatusForbidden, "Only the owning organizer may modify this event")
	}

	return apis.NewInternalServerError("Something went wrong", nil)
}

func envelopeError(e *core.RequestEvent, code int, message string) error {
	return e.JSON(code, Envelope{
		Success:       false,
		Message:       message,
		ErrorMessages: []string{message},
	})
}
