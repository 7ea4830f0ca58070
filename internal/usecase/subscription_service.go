package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
	"github.com/proofofputt/putt-api/internal/platform/logging"
)

const (
	defaultWebhookMaxRetries = 5
	webhookRetryBatchSize    = 50
)

// PaymentOrder is a hosted checkout request sent to the payment provider.
type PaymentOrder struct {
	Amount        string
	Currency      string
	Label         string
	RedirectURL   string
	CustomerEmail string
	Metadata      map[string]any
}

type PaymentOrderResult struct {
	OrderID     string
	CheckoutURL string
	Raw         map[string]any
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, order PaymentOrder) (PaymentOrderResult, error)
}

// TaskSubmitter runs webhook processing off the request path.
type TaskSubmitter interface {
	Submit(task func()) error
}

type webhookRecorder interface {
	WebhookReceived(eventType string, duplicate bool)
}

type SubscriptionConfig struct {
	WebhookSecret string
	FrontendURL   string
	MaxRetries    int
}

type SubscriptionService struct {
	repo      subscription.Repository
	players   player.Repository
	payments  PaymentGateway
	submitter TaskSubmitter
	notifier  notifier
	cfg       SubscriptionConfig
	recorder  webhookRecorder
	logger    *logging.Logger
	now       func() time.Time
}

func NewSubscriptionService(repo subscription.Repository, players player.Repository, payments PaymentGateway, submitter TaskSubmitter, n notifier, cfg SubscriptionConfig, logger *logging.Logger) *SubscriptionService {
	if n == nil {
		n = nopNotifier{}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultWebhookMaxRetries
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SubscriptionService{
		repo:      repo,
		players:   players,
		payments:  payments,
		submitter: submitter,
		notifier:  n,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *SubscriptionService) WithRecorder(r webhookRecorder) *SubscriptionService {
	s.recorder = r
	return s
}

type Checkout struct {
	OrderID     string
	CheckoutURL string
	Interval    subscription.Interval
	Price       subscription.Price
}

func (s *SubscriptionService) CreateCheckout(ctx context.Context, playerID int64, interval string) (_ Checkout, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SubscriptionService.CreateCheckout")
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	iv := subscription.Interval(strings.ToLower(strings.TrimSpace(interval)))
	if iv == "" {
		iv = subscription.IntervalMonthly
	}
	price, err := subscription.PriceFor(iv)
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if s.payments == nil {
		return Checkout{}, fmt.Errorf("%w: payment provider is not configured", ErrDependencyUnavailable)
	}
	p, found, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return Checkout{}, fmt.Errorf("get player: %w", err)
	}
	if !found {
		return Checkout{}, fmt.Errorf("%w: player=%d", ErrNotFound, playerID)
	}

	metadata := map[string]any{"player_id": strconv.FormatInt(playerID, 10), "interval": string(iv)}
	res, err := s.payments.CreateOrder(ctx, PaymentOrder{
		Amount:        price.Amount,
		Currency:      price.Currency,
		Label:         price.Label,
		RedirectURL:   strings.TrimRight(s.cfg.FrontendURL, "/") + "/settings/subscription?checkout=success",
		CustomerEmail: p.Email,
		Metadata:      metadata,
	})
	if err != nil {
		return Checkout{}, fmt.Errorf("%w: create checkout: %s", ErrDependencyUnavailable, err.Error())
	}
	if res.CheckoutURL == "" {
		return Checkout{}, fmt.Errorf("%w: payment provider returned no checkout url", ErrDependencyUnavailable)
	}

	if err := s.repo.RecordOrder(ctx, subscription.Order{
		PlayerID:  playerID,
		OrderID:   res.OrderID,
		Interval:  iv,
		Amount:    price.Amount,
		Currency:  price.Currency,
		Payload:   res.Raw,
		Status:    "pending",
		CreatedAt: s.now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "record checkout order failed", "order_id", res.OrderID, "error", err)
	}
	return Checkout{OrderID: res.OrderID, CheckoutURL: res.CheckoutURL, Interval: iv, Price: price}, nil
}

func (s *SubscriptionService) Status(ctx context.Context, playerID int64) (subscription.State, error) {
	state, found, err := s.repo.GetState(ctx, playerID)
	if err != nil {
		return subscription.State{}, fmt.Errorf("get subscription state: %w", err)
	}
	if !found {
		return subscription.State{}, fmt.Errorf("%w: player=%d", ErrNotFound, playerID)
	}
	return state, nil
}

type WebhookAck struct {
	EventID   string
	Duplicate bool
}

// HandleWebhook verifies, stores and schedules a provider callback. Processing
// happens asynchronously; the stored row is the source of truth for retries.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookAck, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SubscriptionService.HandleWebhook")
	defer span.End()

	if s.cfg.WebhookSecret == "" {
		return WebhookAck{}, fmt.Errorf("%w: webhook secret is not configured", ErrUnauthorized)
	}
	if !VerifySignature(body, signature, s.cfg.WebhookSecret) {
		return WebhookAck{}, fmt.Errorf("%w: invalid webhook signature", ErrUnauthorized)
	}

	var payload map[string]any
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return WebhookAck{}, fmt.Errorf("%w: webhook body is not valid json", ErrInvalidInput)
	}
	event := parseWebhookEvent(payload)
	if event.ProviderEventID == "" || event.EventType == "" {
		return WebhookAck{}, fmt.Errorf("%w: webhook id and type are required", ErrInvalidInput)
	}
	event.CreatedAt = s.now().UTC()

	stored, created, err := s.repo.InsertEvent(ctx, event)
	if err != nil {
		return WebhookAck{}, fmt.Errorf("store webhook event: %w", err)
	}
	if s.recorder != nil {
		s.recorder.WebhookReceived(event.EventType, !created)
	}
	if !created {
		return WebhookAck{EventID: event.ProviderEventID, Duplicate: true}, nil
	}

	detached := context.WithoutCancel(ctx)
	process := func() {
		if err := s.ProcessEvent(detached, stored); err != nil {
			s.logger.WarnContext(detached, "webhook processing failed", "event_id", stored.ProviderEventID, "type", stored.EventType, "error", err)
		}
	}
	if s.submitter == nil {
		process()
	} else if err := s.submitter.Submit(process); err != nil {
		s.logger.WarnContext(ctx, "schedule webhook processing failed; left for retry", "event_id", stored.ProviderEventID, "error", err)
	}
	return WebhookAck{EventID: event.ProviderEventID}, nil
}

// VerifySignature checks a hex HMAC-SHA256 of body, accepting an optional "sha256=" prefix.
func VerifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// ProcessEvent applies one stored webhook to the player's subscription.
func (s *SubscriptionService) ProcessEvent(ctx context.Context, event subscription.WebhookEvent) (err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SubscriptionService.ProcessEvent")
	defer func() {
		failSpan(span, err)
		span.End()
	}()

	playerID, err := s.resolvePlayer(ctx, event)
	if err != nil {
		s.markFailed(ctx, event, err)
		return err
	}

	now := s.now().UTC()
	change, message, handled := s.changeFor(event, now)
	if handled {
		if err := s.repo.Apply(ctx, playerID, change); err != nil {
			err = fmt.Errorf("apply subscription change: %w", err)
			s.markFailed(ctx, event, err)
			return err
		}
	} else {
		s.logger.InfoContext(ctx, "ignoring webhook event type", "event_id", event.ProviderEventID, "type", event.EventType)
	}

	if err := s.repo.MarkProcessed(ctx, event.ID, &playerID, now); err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	if message != "" {
		if _, err := s.notifier.Notify(ctx, subscriptionNotification(playerID, "Subscription update", message)); err != nil {
			s.logger.WarnContext(ctx, "subscription notification failed", "player_id", playerID, "error", err)
		}
	}
	return nil
}

func (s *SubscriptionService) changeFor(event subscription.WebhookEvent, now time.Time) (subscription.Change, string, bool) {
	active := subscription.StatusActive
	premium := player.TierPremium
	interval := intervalOf(event.Payload)
	cycle := string(interval)
	change := subscription.Change{UpdatedAt: now}

	switch event.EventType {
	case "order.paid", "payment.succeeded", "payment.completed":
		end := subscription.PeriodEnd(interval, now)
		change.Status = &active
		change.Tier = &premium
		change.BillingCycle = &cycle
		change.StartedAt = &now
		change.PeriodStart = &now
		change.PeriodEnd = &end
		if event.CustomerID != "" {
			change.ZapriteCustomerID = &event.CustomerID
		}
		if event.PaymentMethod != "" {
			change.PaymentMethod = &event.PaymentMethod
		}
		return change, "Your Full Subscriber membership is active. Thank you!", true
	case "subscription.created":
		change.Status = &active
		change.Tier = &premium
		if event.SubscriptionID != "" {
			change.ZapriteSubscriptionID = &event.SubscriptionID
		}
		return change, "", true
	case "subscription.renewed", "subscription.updated":
		end := subscription.PeriodEnd(interval, now)
		change.Status = &active
		change.PeriodStart = &now
		change.PeriodEnd = &end
		return change, "Your subscription has been renewed.", true
	case "subscription.canceled", "subscription.cancelled":
		cancel := true
		change.CancelAtPeriodEnd = &cancel
		return change, "Your subscription will end at the close of the current period.", true
	case "subscription.expired", "subscription.ended":
		canceled := subscription.StatusCanceled
		change.Status = &canceled
		change.ClearTier = true
		return change, "Your subscription has ended.", true
	}
	return change, "", false
}

func (s *SubscriptionService) resolvePlayer(ctx context.Context, event subscription.WebhookEvent) (int64, error) {
	if event.PlayerID != nil {
		return *event.PlayerID, nil
	}
	if event.CustomerID != "" {
		id, found, err := s.repo.FindPlayerByCustomerID(ctx, event.CustomerID)
		if err != nil {
			return 0, fmt.Errorf("find player by customer: %w", err)
		}
		if found {
			return id, nil
		}
	}
	if email := customerEmail(event.Payload); email != "" {
		p, found, err := s.players.GetByEmail(ctx, strings.ToLower(email))
		if err != nil {
			return 0, fmt.Errorf("find player by email: %w", err)
		}
		if found {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: webhook %s does not identify a player", ErrNotFound, event.ProviderEventID)
}

func (s *SubscriptionService) markFailed(ctx context.Context, event subscription.WebhookEvent, cause error) {
	if err := s.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "record webhook failure failed", "event_id", event.ProviderEventID, "error", err)
	}
}

// RetryFailed reprocesses stored events that have not succeeded yet.
func (s *SubscriptionService) RetryFailed(ctx context.Context) (int, error) {
	events, err := s.repo.ListRetryable(ctx, s.cfg.MaxRetries, webhookRetryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list retryable webhooks: %w", err)
	}
	succeeded := 0
	for _, e := range events {
		if err := s.ProcessEvent(ctx, e); err == nil {
			succeeded++
		}
	}
	return succeeded, nil
}

func parseWebhookEvent(payload map[string]any) subscription.WebhookEvent {
	data, _ := payload["data"].(map[string]any)
	if data == nil {
		data = payload
	}
	event := subscription.WebhookEvent{
		ProviderEventID: firstString(payload, "id", "eventId", "event_id"),
		EventType:       strings.ToLower(firstString(payload, "type", "event", "eventType")),
		OrderID:         firstString(data, "orderId", "order_id", "id"),
		SubscriptionID:  firstString(data, "subscriptionId", "subscription_id"),
		Currency:        firstString(data, "currency"),
		PaymentMethod:   firstString(data, "paymentMethod", "payment_method"),
		Payload:         payload,
	}
	if customer, ok := data["customer"].(map[string]any); ok {
		event.CustomerID = firstString(customer, "id")
	}
	if event.CustomerID == "" {
		event.CustomerID = firstString(data, "customerId", "customer_id")
	}
	if amount, ok := numberOf(data["amount"]); ok {
		event.Amount = &amount
	}

	meta, _ := data["metadata"].(map[string]any)
	raw := firstString(meta, "player_id", "userId", "user_id")
	if raw == "" {
		if customer, ok := data["customer"].(map[string]any); ok {
			customerMeta, _ := customer["metadata"].(map[string]any)
			raw = firstString(customerMeta, "player_id", "userId", "user_id")
		}
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		event.PlayerID = &id
	}
	return event
}

func intervalOf(payload map[string]any) subscription.Interval {
	data, _ := payload["data"].(map[string]any)
	meta, _ := data["metadata"].(map[string]any)
	if subscription.Interval(firstString(meta, "interval")) == subscription.IntervalAnnual {
		return subscription.IntervalAnnual
	}
	return subscription.IntervalMonthly
}

func customerEmail(payload map[string]any) string {
	data, _ := payload["data"].(map[string]any)
	if customer, ok := data["customer"].(map[string]any); ok {
		if email := firstString(customer, "email"); email != "" {
			return email
		}
	}
	return firstString(data, "customerEmail", "email")
}

// firstString returns the first key holding a non-empty string or number.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

func numberOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
