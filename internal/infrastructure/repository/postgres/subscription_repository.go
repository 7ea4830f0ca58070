package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
	qb "github.com/proofofputt/putt-api/internal/platform/querybuilder"
)

type SubscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) RecordOrder(ctx context.Context, o subscription.Order) error {
	payload := o.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	status := o.Status
	if status == "" {
		status = "pending"
	}
	query, args, err := qb.InsertModel("zaprite_orders", zapriteOrderTableModel{
		OrderID:   o.OrderID,
		PlayerID:  o.PlayerID,
		Interval:  string(o.Interval),
		Amount:    o.Amount,
		Currency:  o.Currency,
		Payload:   jsonOf(payload),
		Status:    status,
		CreatedAt: o.CreatedAt,
	}, "ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status, payload = EXCLUDED.payload")
	if err != nil {
		return fmt.Errorf("build insert zaprite order query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert zaprite order: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) InsertEvent(ctx context.Context, e subscription.WebhookEvent) (subscription.WebhookEvent, bool, error) {
	query, args, err := qb.InsertModel("zaprite_events", newZapriteEventTableModel(e),
		"ON CONFLICT (event_id) DO NOTHING RETURNING id")
	if err != nil {
		return subscription.WebhookEvent{}, false, fmt.Errorf("build insert zaprite event query: %w", err)
	}

	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if !isNotFound(err) {
			return subscription.WebhookEvent{}, false, fmt.Errorf("insert zaprite event: %w", err)
		}
		existing, err := r.getEvent(ctx, qb.Eq("event_id", e.ProviderEventID))
		if err != nil {
			return subscription.WebhookEvent{}, false, err
		}
		return existing, false, nil
	}
	e.ID = id
	return e, true, nil
}

func (r *SubscriptionRepository) getEvent(ctx context.Context, cond qb.Condition) (subscription.WebhookEvent, error) {
	query, args, err := qb.Select(zapriteEventColumns...).From("zaprite_events").Where(cond).ToSQL()
	if err != nil {
		return subscription.WebhookEvent{}, fmt.Errorf("build select zaprite event query: %w", err)
	}
	var row zapriteEventTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return subscription.WebhookEvent{}, fmt.Errorf("select zaprite event: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SubscriptionRepository) MarkProcessed(ctx context.Context, id int64, playerID *int64, at time.Time) error {
	update := qb.Update("zaprite_events").
		Set("processed", true).
		Set("processed_at", at).
		Set("processing_error", "")
	if playerID != nil {
		update = update.Set("player_id", *playerID)
	}
	query, args, err := update.Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build mark zaprite event processed query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark zaprite event processed: %w", err)
	}
	if n, err := rowsAffected(res, "mark zaprite event processed"); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("webhook event %d not found", id)
	}
	return nil
}

func (r *SubscriptionRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query, args, err := qb.Update("zaprite_events").
		Set("processing_error", reason).
		SetExpr("retry_count", "retry_count + 1").
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark zaprite event failed query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark zaprite event failed: %w", err)
	}
	if n, err := rowsAffected(res, "mark zaprite event failed"); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("webhook event %d not found", id)
	}
	return nil
}

func (r *SubscriptionRepository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]subscription.WebhookEvent, error) {
	query, args, err := qb.Select(zapriteEventColumns...).From("zaprite_events").
		Where(qb.Eq("processed", false), qb.Lt("retry_count", maxRetries)).
		OrderBy("id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select retryable zaprite events query: %w", err)
	}
	var rows []zapriteEventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select retryable zaprite events: %w", err)
	}
	out := make([]subscription.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *SubscriptionRepository) GetState(ctx context.Context, playerID int64) (subscription.State, bool, error) {
	row, ok, err := selectSubscriptionState(ctx, r.db, playerID, false)
	if err != nil || !ok {
		return subscription.State{}, ok, err
	}
	return row.toDomain(), true, nil
}

func selectSubscriptionState(ctx context.Context, q sqlx.QueryerContext, playerID int64, lock bool) (subscriptionStateRow, bool, error) {
	b := qb.Select(subscriptionStateColumns...).From("players p").
		LeftJoin("player_subscriptions s ON s.player_id = p.player_id").
		Where(qb.Eq("p.player_id", playerID))
	if lock {
		b = b.ForUpdate()
	}
	query, args, err := b.ToSQL()
	if err != nil {
		return subscriptionStateRow{}, false, fmt.Errorf("build select subscription state query: %w", err)
	}
	if lock {
		// outer joins cannot lock the nullable side
		query += " OF p"
	}
	var row subscriptionStateRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if isNotFound(err) {
			return subscriptionStateRow{}, false, nil
		}
		return subscriptionStateRow{}, false, fmt.Errorf("select subscription state: %w", err)
	}
	return row, true, nil
}

// Apply merges c into the stored state and mirrors tier and status onto the player row.
func (r *SubscriptionRepository) Apply(ctx context.Context, playerID int64, c subscription.Change) error {
	return withTx(ctx, r.db, "apply subscription change", func(tx *sqlx.Tx) error {
		row, ok, err := selectSubscriptionState(ctx, tx, playerID, true)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("player %d not found", playerID)
		}
		current := row.toDomain()
		if !row.HasSubscription {
			// membership_tier is only a read fallback; a first change starts from no tier
			current.Tier = nil
		}
		next := current.Merge(c)

		update := qb.Update("players").
			Set("subscription_status", next.Status).
			Set("updated_at", c.UpdatedAt)
		switch {
		case c.ClearTier:
			update = update.Set("membership_tier", player.TierBasic)
		case c.Tier != nil:
			update = update.Set("membership_tier", *c.Tier)
		}
		query, args, err := update.Where(qb.Eq("player_id", playerID)).ToSQL()
		if err != nil {
			return fmt.Errorf("build update player subscription query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update player subscription: %w", err)
		}

		query, args, err = qb.InsertModel("player_subscriptions", newPlayerSubscriptionTableModel(next, c.UpdatedAt),
			`ON CONFLICT (player_id) DO UPDATE SET
				subscription_tier = EXCLUDED.subscription_tier,
				billing_cycle = EXCLUDED.billing_cycle,
				subscription_started_at = COALESCE(player_subscriptions.subscription_started_at, EXCLUDED.subscription_started_at),
				current_period_start = EXCLUDED.current_period_start,
				current_period_end = EXCLUDED.current_period_end,
				cancel_at_period_end = EXCLUDED.cancel_at_period_end,
				zaprite_customer_id = EXCLUDED.zaprite_customer_id,
				zaprite_subscription_id = EXCLUDED.zaprite_subscription_id,
				payment_method = EXCLUDED.payment_method,
				updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return fmt.Errorf("build upsert player subscription query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player subscription: %w", err)
		}
		return nil
	})
}

func (r *SubscriptionRepository) FindPlayerByCustomerID(ctx context.Context, customerID string) (int64, bool, error) {
	query, args, err := qb.Select("player_id").From("player_subscriptions").
		Where(qb.Eq("zaprite_customer_id", customerID)).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return 0, false, fmt.Errorf("build select player by customer query: %w", err)
	}
	var id int64
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select player by customer: %w", err)
	}
	return id, true, nil
}
