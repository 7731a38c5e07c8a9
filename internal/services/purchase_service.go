package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticketer/config"
	"ticketer/internal/services/payment"
	"ticketer/internal/status"
	"ticketer/models"
	"ticketer/monitoring"
	"ticketer/utils"
)

// advanceStatusScript moves a purchase session forward exactly once: it
// compares the stored status against the expected one and, only on a match,
// writes the new status plus any extra field pairs. Returns -1 when the
// session is gone, 0 when the status did not match, 1 on success.
const advanceStatusScript = `
local current = redis.call("HGET", KEYS[1], "status")
if current == false then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2])
for i = 3, #ARGV, 2 do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i+1])
end
return 1
`

// createSessionScript writes the session hash and its TTL in one round trip,
// so a crash between the two calls can never leave an immortal key behind.
// ARGV[1] is the TTL in seconds, the rest are field-value pairs.
const createSessionScript = `
redis.call("HSET", KEYS[1], unpack(ARGV, 2))
redis.call("EXPIRE", KEYS[1], ARGV[1])
return 1
`

const paymentNotificationChannel = "payment-notifications"

// Finalizer persists the durable side effects of a completed purchase:
// the attendee record and the ticket inventory decrement.
type Finalizer interface {
	Finalize(ctx context.Context, session *models.PurchaseSession, transactionID string) error
}

// PurchaseService owns the server-side purchase wizard. Each session lives
// in a redis hash keyed by a generated purchase id and expires with the
// session TTL; every step is a compare-and-set transition so a stale or
// replayed request can never move a session twice.
type PurchaseService struct {
	Redis     *redis.Client
	PubNub    *pubnub.PubNub
	config    *config.Config
	gateways  *payment.Registry
	monitor   *monitoring.Monitor
	breaker   *utils.CircuitBreaker
	finalizer Finalizer

	newID func() string
	now   func() time.Time
}

func NewPurchaseService(redisClient *redis.Client, pn *pubnub.PubNub, cfg *config.Config, gateways *payment.Registry, monitor *monitoring.Monitor, finalizer Finalizer) *PurchaseService {
	service := &PurchaseService{
		Redis:     redisClient,
		PubNub:    pn,
		config:    cfg,
		gateways:  gateways,
		monitor:   monitor,
		breaker:   utils.NewCircuitBreaker("payment-provider"),
		finalizer: finalizer,
		newID:     uuid.NewString,
		now:       time.Now,
	}

	if pn != nil {
		go service.SubscribeToPaymentNotifications()
	}

	return service
}

func purchaseKey(purchaseID string) string {
	return fmt.Sprintf("purchase:%s", purchaseID)
}

// StartPurchase picks the first sellable ticket for the event and opens a
// session for it. Sold-out and past-deadline tickets are never picked.
func (s *PurchaseService) StartPurchase(ctx context.Context, eventID string, tickets []models.Ticket) (*models.PurchaseSession, error) {
	ticket, ok := models.PickSellable(tickets, s.now())
	if !ok {
		s.trackStep("start", "failure")
		return nil, status.ErrSoldOut
	}

	session := &models.PurchaseSession{
		ID:        s.newID(),
		EventID:   eventID,
		TicketID:  ticket.ID,
		Price:     ticket.Price,
		Status:    models.PurchaseTicketSelected,
		CreatedAt: s.now(),
	}

	key := purchaseKey(session.ID)
	err := s.Redis.Eval(ctx, createSessionScript, []string{key},
		strconv.FormatInt(int64(s.config.PurchaseSessionTTL.Seconds()), 10),
		"purchase_id", session.ID,
		"event_id", session.EventID,
		"ticket_id", session.TicketID,
		"price", session.Price.String(),
		"status", string(session.Status),
		"created_at", strconv.FormatInt(session.CreatedAt.Unix(), 10),
	).Err()
	if err != nil {
		s.trackStep("start", "failure")
		return nil, fmt.Errorf("create purchase session: %w", err)
	}

	s.trackStep("start", "success")
	return session, nil
}

// RegisterAttendee attaches the attendee details to the session and moves
// it from ticket_selected to attendee_registered.
func (s *PurchaseService) RegisterAttendee(ctx context.Context, purchaseID string, attendee *models.Attendee) (string, error) {
	attendeeID := s.newID()
	registeredAt := attendee.RegistrationDate
	if registeredAt.IsZero() {
		registeredAt = s.now()
	}

	err := s.advanceNext(ctx, purchaseID, models.PurchaseTicketSelected,
		"attendee_id", attendeeID,
		"attendee_name", attendee.Name,
		"attendee_email", attendee.Email,
		"attendee_phone", attendee.Phone,
		"registration_date", strconv.FormatInt(registeredAt.Unix(), 10),
	)
	if err != nil {
		s.trackStep("register", "failure")
		return "", err
	}

	s.trackStep("register", "success")
	return attendeeID, nil
}

// Checkout asks the payment provider for a redirect URL and moves the
// session to payment_initiated with the URL recorded on it. The provider
// call goes through the circuit breaker with its own timeout.
func (s *PurchaseService) Checkout(ctx context.Context, purchaseID, clientIP string) (*payment.Checkout, error) {
	session, err := s.GetSession(ctx, purchaseID)
	if err != nil {
		s.trackStep("checkout", "failure")
		return nil, err
	}
	if session.Status != models.PurchaseAttendeeRegistered {
		s.trackStep("checkout", "failure")
		return nil, status.ErrInvalidTransition
	}

	gateway, err := s.gateways.Primary()
	if err != nil {
		return nil, err
	}

	var checkout *payment.Checkout
	started := s.now()
	err = s.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.config.CheckoutTimeout)
		defer cancel()

		var callErr error
		checkout, callErr = gateway.CreateCheckout(callCtx, &payment.CheckoutRequest{
			PurchaseID: session.ID,
			AttendeeID: session.AttendeeID,
			Amount:     session.Price,
			ClientIP:   clientIP,
		})
		return callErr
	})
	s.trackProvider(string(gateway.Provider()), "create_checkout", time.Since(started))
	if err != nil {
		s.trackStep("checkout", "failure")
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	err = s.advanceNext(ctx, purchaseID, models.PurchaseAttendeeRegistered,
		"checkout_url", checkout.URL,
	)
	if err != nil {
		s.trackStep("checkout", "failure")
		return nil, err
	}

	s.trackStep("checkout", "success")
	return checkout, nil
}

// CompletePayment applies a verified provider callback. The transition out
// of payment_initiated happens at most once, so a replayed callback can
// never finalize (or decrement inventory) twice.
func (s *PurchaseService) CompletePayment(ctx context.Context, result *payment.CallbackResult) error {
	if !result.Success {
		s.trackStep("complete", "failure")
		if err := s.advance(ctx, result.PurchaseID, models.PurchasePaymentInitiated, models.PurchaseCancelled); err != nil {
			return err
		}
		return status.ErrPaymentDeclined
	}

	session, err := s.GetSession(ctx, result.PurchaseID)
	if err != nil {
		s.trackStep("complete", "failure")
		return err
	}
	if !result.Amount.IsZero() && !result.Amount.Equal(session.Price) {
		s.trackStep("complete", "failure")
		return fmt.Errorf("callback amount %s does not match session price %s", result.Amount, session.Price)
	}

	err = s.advanceNext(ctx, result.PurchaseID, models.PurchasePaymentInitiated,
		"transaction_id", result.TransactionID,
	)
	if err != nil {
		s.trackStep("complete", "failure")
		return err
	}

	session.Status = models.PurchaseCompleted
	if s.finalizer != nil {
		if err := s.finalizer.Finalize(ctx, session, result.TransactionID); err != nil {
			slog.Error("finalize purchase", "purchase_id", session.ID, "error", err)
			// Step the session back so the provider's retry can attempt the
			// finalize again instead of finding an already-completed session.
			if rbErr := s.advance(ctx, result.PurchaseID, models.PurchaseCompleted, models.PurchasePaymentInitiated); rbErr != nil {
				slog.Error("revert purchase status", "purchase_id", session.ID, "error", rbErr)
			}
			s.trackStep("complete", "failure")
			return fmt.Errorf("finalize purchase: %w", err)
		}
	}

	s.trackStep("complete", "success")
	s.publishPurchaseUpdate(session.ID, "payment_success")
	return nil
}

// Cancel abandons a session from any pre-completed state.
func (s *PurchaseService) Cancel(ctx context.Context, purchaseID string) error {
	session, err := s.GetSession(ctx, purchaseID)
	if err != nil {
		return err
	}
	if !session.Status.Cancellable() {
		return status.ErrInvalidTransition
	}

	if err := s.advance(ctx, purchaseID, session.Status, models.PurchaseCancelled); err != nil {
		return err
	}

	s.trackStep("cancel", "success")
	s.publishPurchaseUpdate(purchaseID, "purchase_cancelled")
	return nil
}

// GetSession loads and decodes one session hash. A missing or expired key
// surfaces as ErrPurchaseNotFound.
func (s *PurchaseService) GetSession(ctx context.Context, purchaseID string) (*models.PurchaseSession, error) {
	data, err := s.Redis.HGetAll(ctx, purchaseKey(purchaseID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load purchase session: %w", err)
	}
	if len(data) == 0 {
		return nil, status.ErrPurchaseNotFound
	}

	price, err := decimal.NewFromString(data["price"])
	if err != nil {
		return nil, fmt.Errorf("corrupt price in session %s: %w", purchaseID, err)
	}

	session := &models.PurchaseSession{
		ID:            data["purchase_id"],
		EventID:       data["event_id"],
		TicketID:      data["ticket_id"],
		Price:         price,
		Status:        models.PurchaseState(data["status"]),
		AttendeeID:    data["attendee_id"],
		AttendeeName:  data["attendee_name"],
		AttendeeEmail: data["attendee_email"],
		AttendeePhone: data["attendee_phone"],
		CheckoutURL:   data["checkout_url"],
	}

	if raw := data["created_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			session.CreatedAt = time.Unix(unix, 0)
		}
	}
	if raw := data["registration_date"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			session.RegistrationDate = time.Unix(unix, 0)
		}
	}

	return session, nil
}

// advanceNext moves a session one step along the normal forward path.
func (s *PurchaseService) advanceNext(ctx context.Context, purchaseID string, from models.PurchaseState, fields ...string) error {
	to, ok := models.NextState[from]
	if !ok {
		return status.ErrInvalidTransition
	}
	return s.advance(ctx, purchaseID, from, to, fields...)
}

func (s *PurchaseService) advance(ctx context.Context, purchaseID string, from, to models.PurchaseState, fields ...string) error {
	args := make([]any, 0, len(fields)+2)
	args = append(args, string(from), string(to))
	for _, f := range fields {
		args = append(args, f)
	}

	result, err := s.Redis.Eval(ctx, advanceStatusScript, []string{purchaseKey(purchaseID)}, args...).Result()
	if err != nil {
		return fmt.Errorf("advance purchase %s: %w", purchaseID, err)
	}

	switch result {
	case int64(1):
		return nil
	case int64(-1):
		return status.ErrPurchaseNotFound
	default:
		return status.ErrInvalidTransition
	}
}

// Gateway exposes a registered payment gateway by provider name.
func (s *PurchaseService) Gateway(provider string) (payment.Gateway, error) {
	return s.gateways.Get(payment.Provider(provider))
}

// PublishPaymentNotification pushes a notification onto the provider
// channel. Used by the dev simulation endpoint; the subscription loop
// consumes it exactly like a real provider push.
func (s *PurchaseService) PublishPaymentNotification(purchaseID, outcome string) error {
	if s.PubNub == nil {
		return fmt.Errorf("realtime notifications are not configured")
	}

	session, err := s.GetSession(context.Background(), purchaseID)
	if err != nil {
		return err
	}

	_, pnStatus, err := s.PubNub.Publish().
		Channel(paymentNotificationChannel).
		Message(map[string]any{
			"purchase_id":    purchaseID,
			"status":         outcome,
			"transaction_id": fmt.Sprintf("SIM-%s", purchaseID),
			"amount":         session.Price,
		}).
		Execute()
	if err != nil {
		return fmt.Errorf("publish payment notification: %w", err)
	}
	if pnStatus.Error != nil {
		return fmt.Errorf("publish payment notification: status %d", pnStatus.StatusCode)
	}

	return nil
}

// SubscribeToPaymentNotifications listens for provider notifications pushed
// over PubNub and applies them as payment callbacks.
func (s *PurchaseService) SubscribeToPaymentNotifications() {
	listener := pubnub.NewListener()

	s.PubNub.AddListener(listener)
	s.PubNub.Subscribe().
		Channels([]string{paymentNotificationChannel}).
		Execute()

	for message := range listener.Message {
		go s.handlePaymentNotification(message)
	}
}

func (s *PurchaseService) handlePaymentNotification(message *pubnub.PNMessage) {
	var notification models.PaymentNotification

	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		slog.Error("parse payment notification", "error", err)
		return
	}

	result := &payment.CallbackResult{
		PurchaseID:    notification.PurchaseID,
		TransactionID: notification.TransactionID,
		Amount:        notification.Amount,
		Success:       notification.Status == "success",
	}

	if err := s.CompletePayment(context.Background(), result); err != nil {
		slog.Error("apply payment notification", "purchase_id", notification.PurchaseID, "error", err)
	}
}

func (s *PurchaseService) publishPurchaseUpdate(purchaseID, eventType string) {
	if s.PubNub == nil {
		return
	}

	channel := fmt.Sprintf("purchase-%s", purchaseID)
	s.PubNub.Publish().
		Channel(channel).
		Message(map[string]any{
			"type":        eventType,
			"purchase_id": purchaseID,
		}).
		Execute()
}

func (s *PurchaseService) trackStep(step, outcome string) {
	if s.monitor != nil {
		s.monitor.TrackPurchaseStep(step, outcome)
	}
}

func (s *PurchaseService) trackProvider(provider, operation string, d time.Duration) {
	if s.monitor != nil {
		s.monitor.TrackProviderCall(provider, operation, d)
	}
}
