package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/subscription"
)

type zapriteOrderTableModel struct {
	OrderID   string                `db:"order_id"`
	PlayerID  int64                 `db:"player_id"`
	Interval  string                `db:"interval"`
	Amount    string                `db:"amount"`
	Currency  string                `db:"currency"`
	Payload   jsonb[map[string]any] `db:"payload"`
	Status    string                `db:"status"`
	CreatedAt time.Time             `db:"created_at"`
}

type zapriteEventTableModel struct {
	ID              int64                 `db:"id,omitinsert"`
	EventID         string                `db:"event_id"`
	EventType       string                `db:"event_type"`
	PlayerID        sql.NullInt64         `db:"player_id"`
	CustomerID      string                `db:"customer_id"`
	SubscriptionID  string                `db:"subscription_id"`
	OrderID         string                `db:"order_id"`
	Payload         jsonb[map[string]any] `db:"payload"`
	Amount          sql.NullFloat64       `db:"amount"`
	Currency        string                `db:"currency"`
	PaymentMethod   string                `db:"payment_method"`
	Processed       bool                  `db:"processed"`
	ProcessedAt     *time.Time            `db:"processed_at"`
	ProcessingError string                `db:"processing_error"`
	RetryCount      int                   `db:"retry_count"`
	CreatedAt       time.Time             `db:"created_at"`
}

var zapriteEventColumns = []string{
	"id", "event_id", "event_type", "player_id", "customer_id", "subscription_id", "order_id",
	"payload", "amount", "currency", "payment_method", "processed", "processed_at",
	"processing_error", "retry_count", "created_at",
}

func newZapriteEventTableModel(e subscription.WebhookEvent) zapriteEventTableModel {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	m := zapriteEventTableModel{
		EventID:         e.ProviderEventID,
		EventType:       e.EventType,
		PlayerID:        nullInt64(e.PlayerID),
		CustomerID:      e.CustomerID,
		SubscriptionID:  e.SubscriptionID,
		OrderID:         e.OrderID,
		Payload:         jsonOf(payload),
		Currency:        e.Currency,
		PaymentMethod:   e.PaymentMethod,
		Processed:       e.Processed,
		ProcessedAt:     e.ProcessedAt,
		ProcessingError: e.ProcessingError,
		RetryCount:      e.RetryCount,
		CreatedAt:       e.CreatedAt,
	}
	if e.Amount != nil {
		m.Amount = sql.NullFloat64{Float64: *e.Amount, Valid: true}
	}
	return m
}

func (m zapriteEventTableModel) toDomain() subscription.WebhookEvent {
	return subscription.WebhookEvent{
		ID:              m.ID,
		ProviderEventID: m.EventID,
		EventType:       m.EventType,
		PlayerID:        int64Ptr(m.PlayerID),
		CustomerID:      m.CustomerID,
		SubscriptionID:  m.SubscriptionID,
		OrderID:         m.OrderID,
		Payload:         m.Payload.V,
		Amount:          float64Ptr(m.Amount),
		Currency:        m.Currency,
		PaymentMethod:   m.PaymentMethod,
		Processed:       m.Processed,
		ProcessedAt:     m.ProcessedAt,
		ProcessingError: m.ProcessingError,
		RetryCount:      m.RetryCount,
		CreatedAt:       m.CreatedAt,
	}
}

// subscriptionStateRow is players left joined with player_subscriptions.
type subscriptionStateRow struct {
	PlayerID              int64      `db:"player_id"`
	MembershipTier        string     `db:"membership_tier"`
	SubscriptionStatus    string     `db:"subscription_status"`
	HasSubscription       bool       `db:"has_subscription"`
	Tier                  *string    `db:"subscription_tier"`
	BillingCycle          *string    `db:"billing_cycle"`
	StartedAt             *time.Time `db:"subscription_started_at"`
	PeriodStart           *time.Time `db:"current_period_start"`
	PeriodEnd             *time.Time `db:"current_period_end"`
	CancelAtPeriodEnd     *bool      `db:"cancel_at_period_end"`
	ZapriteCustomerID     *string    `db:"zaprite_customer_id"`
	ZapriteSubscriptionID *string    `db:"zaprite_subscription_id"`
	PaymentMethod         *string    `db:"payment_method"`
}

var subscriptionStateColumns = []string{
	"p.player_id", "p.membership_tier", "p.subscription_status",
	"(s.player_id IS NOT NULL) AS has_subscription",
	"s.subscription_tier", "s.billing_cycle", "s.subscription_started_at",
	"s.current_period_start", "s.current_period_end", "s.cancel_at_period_end",
	"s.zaprite_customer_id", "s.zaprite_subscription_id", "s.payment_method",
}

func (m subscriptionStateRow) toDomain() subscription.State {
	st := subscription.State{PlayerID: m.PlayerID, Status: m.SubscriptionStatus}
	if !m.HasSubscription {
		if m.MembershipTier != "" {
			tier := m.MembershipTier
			st.Tier = &tier
		}
		return st
	}
	st.Tier = m.Tier
	st.BillingCycle = m.BillingCycle
	st.StartedAt = m.StartedAt
	st.PeriodStart = m.PeriodStart
	st.PeriodEnd = m.PeriodEnd
	st.CancelAtPeriodEnd = m.CancelAtPeriodEnd != nil && *m.CancelAtPeriodEnd
	st.ZapriteCustomerID = m.ZapriteCustomerID
	st.ZapriteSubscriptionID = m.ZapriteSubscriptionID
	st.PaymentMethod = m.PaymentMethod
	return st
}

type playerSubscriptionTableModel struct {
	PlayerID              int64      `db:"player_id"`
	Tier                  *string    `db:"subscription_tier"`
	BillingCycle          *string    `db:"billing_cycle"`
	StartedAt             *time.Time `db:"subscription_started_at"`
	PeriodStart           *time.Time `db:"current_period_start"`
	PeriodEnd             *time.Time `db:"current_period_end"`
	CancelAtPeriodEnd     bool       `db:"cancel_at_period_end"`
	ZapriteCustomerID     *string    `db:"zaprite_customer_id"`
	ZapriteSubscriptionID *string    `db:"zaprite_subscription_id"`
	PaymentMethod         *string    `db:"payment_method"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func newPlayerSubscriptionTableModel(st subscription.State, at time.Time) playerSubscriptionTableModel {
	return playerSubscriptionTableModel{
		PlayerID:              st.PlayerID,
		Tier:                  st.Tier,
		BillingCycle:          st.BillingCycle,
		StartedAt:             st.StartedAt,
		PeriodStart:           st.PeriodStart,
		PeriodEnd:             st.PeriodEnd,
		CancelAtPeriodEnd:     st.CancelAtPeriodEnd,
		ZapriteCustomerID:     st.ZapriteCustomerID,
		ZapriteSubscriptionID: st.ZapriteSubscriptionID,
		PaymentMethod:         st.PaymentMethod,
		UpdatedAt:             at,
	}
}
