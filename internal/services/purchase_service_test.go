package services

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketer/config"
	"ticketer/internal/services/payment"
	"ticketer/internal/status"
	"ticketer/models"
	"ticketer/utils"
)

var (
	testNow          = time.Unix(1700000000, 0)
	testRegisteredAt = testNow.Add(3 * time.Minute)
)

func setupTestPurchaseService(gateways *payment.Registry, finalizer Finalizer) (*PurchaseService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	cfg := &config.Config{
		PurchaseSessionTTL: 15 * time.Minute,
		CheckoutTimeout:    10 * time.Second,
	}

	service := &PurchaseService{
		Redis:     db,
		PubNub:    nil,
		config:    cfg,
		gateways:  gateways,
		breaker:   utils.NewCircuitBreaker("test"),
		finalizer: finalizer,
		newID:     func() string { return "42" },
		now:       func() time.Time { return testNow },
	}

	return service, mock
}

// fakeGateway captures the checkout request it was handed.
type fakeGateway struct {
	lastCheckout *payment.CheckoutRequest
	checkoutErr  error
}

func (g *fakeGateway) Provider() payment.Provider { return "fake" }

func (g *fakeGateway) CreateCheckout(ctx context.Context, req *payment.CheckoutRequest) (*payment.Checkout, error) {
	g.lastCheckout = req
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	return &payment.Checkout{Provider: "fake", URL: "https://pay.example/checkout"}, nil
}

func (g *fakeGateway) VerifyCallback(values url.Values) (*payment.CallbackResult, error) {
	return nil, status.ErrBadSignature
}

func (g *fakeGateway) CheckTransaction(ctx context.Context, purchaseID string) (*payment.TransactionStatus, error) {
	return nil, nil
}

func (g *fakeGateway) Close(ctx context.Context) error { return nil }

type fakeFinalizer struct {
	calls       int
	lastSession *models.PurchaseSession
	err         error
}

func (f *fakeFinalizer) Finalize(ctx context.Context, session *models.PurchaseSession, transactionID string) error {
	f.calls++
	f.lastSession = session
	return f.err
}

func TestStartPurchase_PicksSellableTicket(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	ctx := context.Background()
	tickets := []models.Ticket{
		{ID: "sold-out", EventID: "ev1", Price: decimal.NewFromInt(50000), Quantity: 0},
		{ID: "open", EventID: "ev1", Price: decimal.NewFromInt(150000), Quantity: 7},
	}

	mock.ExpectEval(createSessionScript, []string{"purchase:42"},
		"900",
		"purchase_id", "42",
		"event_id", "ev1",
		"ticket_id", "open",
		"price", "150000",
		"status", "ticket_selected",
		"created_at", strconv.FormatInt(testNow.Unix(), 10),
	).SetVal(int64(1))

	session, err := service.StartPurchase(ctx, "ev1", tickets)

	require.NoError(t, err)
	assert.Equal(t, "42", session.ID)
	assert.Equal(t, "open", session.TicketID)
	assert.True(t, session.Price.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, models.PurchaseTicketSelected, session.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartPurchase_SoldOut_NoSessionCreated(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	tickets := []models.Ticket{
		{ID: "t1", Quantity: 0},
		{ID: "t2", Quantity: 0},
	}

	_, err := service.StartPurchase(context.Background(), "ev1", tickets)

	assert.ErrorIs(t, err, status.ErrSoldOut)
	// No redis expectations were registered: any write would fail the mock.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterAttendee_AdvancesWithDetails(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"ticket_selected", "attendee_registered",
		"attendee_id", "42",
		"attendee_name", "Ada",
		"attendee_email", "ada@example.com",
		"attendee_phone", "5551234",
		"registration_date", strconv.FormatInt(testNow.Unix(), 10),
	).SetVal(int64(1))

	attendeeID, err := service.RegisterAttendee(context.Background(), "42", &models.Attendee{
		Name:  "Ada",
		Email: "ada@example.com",
		Phone: "5551234",
	})

	require.NoError(t, err)
	assert.Equal(t, "42", attendeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterAttendee_WrongState_DoesNotAdvance(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"ticket_selected", "attendee_registered",
		"attendee_id", "42",
		"attendee_name", "Ada",
		"attendee_email", "ada@example.com",
		"attendee_phone", "5551234",
		"registration_date", strconv.FormatInt(testNow.Unix(), 10),
	).SetVal(int64(0))

	_, err := service.RegisterAttendee(context.Background(), "42", &models.Attendee{
		Name:  "Ada",
		Email: "ada@example.com",
		Phone: "5551234",
	})

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterAttendee_ExpiredSession(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"ticket_selected", "attendee_registered",
		"attendee_id", "42",
		"attendee_name", "Ada",
		"attendee_email", "ada@example.com",
		"attendee_phone", "5551234",
		"registration_date", strconv.FormatInt(testNow.Unix(), 10),
	).SetVal(int64(-1))

	_, err := service.RegisterAttendee(context.Background(), "42", &models.Attendee{
		Name:  "Ada",
		Email: "ada@example.com",
		Phone: "5551234",
	})

	assert.ErrorIs(t, err, status.ErrPurchaseNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func sessionHash(state models.PurchaseState) map[string]string {
	hash := map[string]string{
		"purchase_id":    "42",
		"event_id":       "ev1",
		"ticket_id":      "open",
		"price":          "150000",
		"status":         string(state),
		"attendee_id":    "42",
		"attendee_name":  "Ada",
		"attendee_email": "ada@example.com",
		"attendee_phone": "5551234",
		"created_at":     strconv.FormatInt(testNow.Unix(), 10),
	}
	if state != models.PurchaseTicketSelected {
		hash["registration_date"] = strconv.FormatInt(testRegisteredAt.Unix(), 10)
	}
	return hash
}

func TestCheckout_CarriesAttendeeAndSessionPrice(t *testing.T) {
	gateway := &fakeGateway{}
	registry := payment.NewRegistry()
	registry.Register(gateway)

	service, mock := setupTestPurchaseService(registry, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseAttendeeRegistered))
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"attendee_registered", "payment_initiated",
		"checkout_url", "https://pay.example/checkout",
	).SetVal(int64(1))

	checkout, err := service.Checkout(context.Background(), "42", "203.0.113.9")

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout", checkout.URL)

	require.NotNil(t, gateway.lastCheckout)
	assert.Equal(t, "42", gateway.lastCheckout.AttendeeID)
	assert.Equal(t, "42", gateway.lastCheckout.PurchaseID)
	assert.True(t, gateway.lastCheckout.Amount.Equal(decimal.NewFromInt(150000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_BeforeRegistration_Rejected(t *testing.T) {
	gateway := &fakeGateway{}
	registry := payment.NewRegistry()
	registry.Register(gateway)

	service, mock := setupTestPurchaseService(registry, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseTicketSelected))

	_, err := service.Checkout(context.Background(), "42", "203.0.113.9")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.Nil(t, gateway.lastCheckout)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_ProviderFailure_StateUnchanged(t *testing.T) {
	gateway := &fakeGateway{checkoutErr: assert.AnError}
	registry := payment.NewRegistry()
	registry.Register(gateway)

	service, mock := setupTestPurchaseService(registry, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseAttendeeRegistered))
	// No Eval expectation: a failed provider call must not advance the state.

	_, err := service.Checkout(context.Background(), "42", "203.0.113.9")

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayment_FinalizesOnce(t *testing.T) {
	finalizer := &fakeFinalizer{}
	service, mock := setupTestPurchaseService(nil, finalizer)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchasePaymentInitiated))
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"payment_initiated", "completed",
		"transaction_id", "TXN-1",
	).SetVal(int64(1))

	err := service.CompletePayment(context.Background(), &payment.CallbackResult{
		PurchaseID:    "42",
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(150000),
		Success:       true,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, finalizer.calls)
	require.NotNil(t, finalizer.lastSession)
	assert.Equal(t, testRegisteredAt.Unix(), finalizer.lastSession.RegistrationDate.Unix())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayment_FinalizeFailure_RevertsStatusForRetry(t *testing.T) {
	finalizer := &fakeFinalizer{err: assert.AnError}
	service, mock := setupTestPurchaseService(nil, finalizer)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchasePaymentInitiated))
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"payment_initiated", "completed",
		"transaction_id", "TXN-1",
	).SetVal(int64(1))
	// A failed finalize must not leave the session completed: the status
	// goes back so the provider's retry can run the whole step again.
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"completed", "payment_initiated",
	).SetVal(int64(1))

	err := service.CompletePayment(context.Background(), &payment.CallbackResult{
		PurchaseID:    "42",
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(150000),
		Success:       true,
	})

	assert.Error(t, err)
	assert.Equal(t, 1, finalizer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayment_ReplayedCallback_DoesNotFinalizeAgain(t *testing.T) {
	finalizer := &fakeFinalizer{}
	service, mock := setupTestPurchaseService(nil, finalizer)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseCompleted))
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"payment_initiated", "completed",
		"transaction_id", "TXN-1",
	).SetVal(int64(0))

	err := service.CompletePayment(context.Background(), &payment.CallbackResult{
		PurchaseID:    "42",
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(150000),
		Success:       true,
	})

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.Equal(t, 0, finalizer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePayment_AmountMismatch(t *testing.T) {
	finalizer := &fakeFinalizer{}
	service, mock := setupTestPurchaseService(nil, finalizer)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchasePaymentInitiated))

	err := service.CompletePayment(context.Background(), &payment.CallbackResult{
		PurchaseID:    "42",
		TransactionID: "TXN-1",
		Amount:        decimal.NewFromInt(1),
		Success:       true,
	})

	assert.Error(t, err)
	assert.Equal(t, 0, finalizer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_FromPaymentInitiated(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchasePaymentInitiated))
	mock.ExpectEval(advanceStatusScript, []string{"purchase:42"},
		"payment_initiated", "cancelled",
	).SetVal(int64(1))

	err := service.Cancel(context.Background(), "42")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_AfterCompletion_Rejected(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseCompleted))

	err := service.Cancel(context.Background(), "42")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_Expired(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:missing").SetVal(map[string]string{})

	_, err := service.GetSession(context.Background(), "missing")

	assert.ErrorIs(t, err, status.ErrPurchaseNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_DecodesFields(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	mock.ExpectHGetAll("purchase:42").SetVal(sessionHash(models.PurchaseAttendeeRegistered))

	session, err := service.GetSession(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, "42", session.ID)
	assert.Equal(t, "ev1", session.EventID)
	assert.Equal(t, "Ada", session.AttendeeName)
	assert.Equal(t, models.PurchaseAttendeeRegistered, session.Status)
	assert.True(t, session.Price.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, testNow.Unix(), session.CreatedAt.Unix())
	assert.Equal(t, testRegisteredAt.Unix(), session.RegistrationDate.Unix())
}

func TestPublishPaymentNotification_RequiresPubNub(t *testing.T) {
	service, mock := setupTestPurchaseService(nil, nil)
	defer mock.ClearExpect()

	err := service.PublishPaymentNotification("42", "success")

	assert.Error(t, err)
}
