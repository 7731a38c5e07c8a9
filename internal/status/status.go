package status

import "errors"

var (
	ErrSoldOut           = errors.New("purchase: no sellable ticket for event")
	ErrPurchaseNotFound  = errors.New("purchase: session not found or expired")
	ErrInvalidTransition = errors.New("purchase: step not allowed in current state")
	ErrPaymentDeclined   = errors.New("payment: provider declined the request")
	ErrBadSignature      = errors.New("payment: callback signature mismatch")
	ErrNotPending        = errors.New("booth request: status already decided")
	ErrNotOwner          = errors.New("event: caller is not the owning organizer")
)
