package subscription

import (
	"fmt"
	"time"
)

type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalAnnual  Interval = "annual"
)

type Price struct {
	Amount   string
	Currency string
	Label    string
}

func PriceFor(i Interval) (Price, error) {
	switch i {
	case IntervalMonthly:
		return Price{Amount: "2.10", Currency: "USD", Label: "Proof of Putt Full Subscriber (Monthly)"}, nil
	case IntervalAnnual:
		return Price{Amount: "21.00", Currency: "USD", Label: "Proof of Putt Full Subscriber (Annual)"}, nil
	}
	return Price{}, fmt.Errorf("unsupported interval %q", i)
}

// PeriodEnd advances from by one billing interval.
func PeriodEnd(i Interval, from time.Time) time.Time {
	if i == IntervalAnnual {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

const (
	StatusInactive = "inactive"
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

type State struct {
	PlayerID              int64
	Tier                  *string
	Status                string
	BillingCycle          *string
	StartedAt             *time.Time
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
	CancelAtPeriodEnd     bool
	ZapriteCustomerID     *string
	ZapriteSubscriptionID *string
	PaymentMethod         *string
}

// Change is a partial update; nil fields are left untouched. ClearTier sets tier to NULL.
type Change struct {
	Tier                  *string
	ClearTier             bool
	Status                *string
	BillingCycle          *string
	StartedAt             *time.Time
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
	CancelAtPeriodEnd     *bool
	ZapriteCustomerID     *string
	ZapriteSubscriptionID *string
	PaymentMethod         *string
	UpdatedAt             time.Time
}

// Order records a checkout we created with the provider.
type Order struct {
	PlayerID  int64
	OrderID   string
	Interval  Interval
	Amount    string
	Currency  string
	Payload   map[string]any
	Status    string
	CreatedAt time.Time
}

type WebhookEvent struct {
	ID              int64
	ProviderEventID string
	EventType       string
	PlayerID        *int64
	CustomerID      string
	SubscriptionID  string
	OrderID         string
	Payload         map[string]any
	Amount          *float64
	Currency        string
	PaymentMethod   string
	Processed       bool
	ProcessedAt     *time.Time
	ProcessingError string
	RetryCount      int
	CreatedAt       time.Time
}

// Merge applies c to s. StartedAt is only taken when s has none yet.
func (s State) Merge(c Change) State {
	switch {
	case c.ClearTier:
		s.Tier = nil
	case c.Tier != nil:
		s.Tier = c.Tier
	}
	if c.Status != nil {
		s.Status = *c.Status
	}
	if c.BillingCycle != nil {
		s.BillingCycle = c.BillingCycle
	}
	if c.StartedAt != nil && s.StartedAt == nil {
		s.StartedAt = c.StartedAt
	}
	if c.PeriodStart != nil {
		s.PeriodStart = c.PeriodStart
	}
	if c.PeriodEnd != nil {
		s.PeriodEnd = c.PeriodEnd
	}
	if c.CancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *c.CancelAtPeriodEnd
	}
	if c.ZapriteCustomerID != nil {
		s.ZapriteCustomerID = c.ZapriteCustomerID
	}
	if c.ZapriteSubscriptionID != nil {
		s.ZapriteSubscriptionID = c.ZapriteSubscriptionID
	}
	if c.PaymentMethod != nil {
		s.PaymentMethod = c.PaymentMethod
	}
	return s
}
