package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/switchkit/pkg/pg"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Store is a subscription.Repository backed by PostgreSQL.
type Store struct {
	db    pg.DBTX
	begin pg.TxBeginner
	inTx  bool
}

var _ subscription.Repository = (*Store)(nil)

// New returns a store using the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, begin: pool}
}

// WithTx runs fn in a transaction. Nested calls join the running transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx subscription.Repository) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pg.InTx(ctx, s.begin, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx, begin: tx, inTx: true})
	})
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM subscriptions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	sub := &subscription.Subscription{}
	if err := json.Unmarshal(data, sub); err != nil {
		return nil, errors.Join(ErrFailedToDecode, err)
	}
	return sub, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return errors.Join(ErrFailedToEncode, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO subscriptions (id, customer_id, status, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    status = EXCLUDED.status,
		    data = EXCLUDED.data,
		    updated_at = now()`,
		sub.ID, sub.CustomerID, string(sub.Status), data,
	)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*subscription.Order, error) {
	return s.scanOrder(ctx, `SELECT data FROM orders WHERE id = $1`, id)
}

// LockOrder takes a row lock held until the transaction ends.
// Outside of WithTx the lock is released as soon as the statement completes.
func (s *Store) LockOrder(ctx context.Context, id uuid.UUID) (*subscription.Order, error) {
	return s.scanOrder(ctx, `SELECT data FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (s *Store) scanOrder(ctx context.Context, query string, id uuid.UUID) (*subscription.Order, error) {
	var data []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return decodeOrder(data)
}

// SaveOrder upserts the order and syncs its subscription links in one transaction.
func (s *Store) SaveOrder(ctx context.Context, order *subscription.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return errors.Join(ErrFailedToEncode, err)
	}
	return s.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		db := tx.(*Store).db
		_, err := db.Exec(ctx, `
			INSERT INTO orders (id, customer_id, kind, status, data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE
			SET customer_id = EXCLUDED.customer_id,
			    kind = EXCLUDED.kind,
			    status = EXCLUDED.status,
			    data = EXCLUDED.data,
			    created_at = EXCLUDED.created_at,
			    updated_at = now()`,
			order.ID, order.CustomerID, string(order.Kind), string(order.Status), data, order.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save order %s: %w", order.ID, err)
		}

		ids := order.SubscriptionIDs
		if ids == nil {
			ids = []uuid.UUID{}
		}
		if _, err := db.Exec(ctx,
			`DELETE FROM order_subscriptions WHERE order_id = $1 AND NOT (subscription_id = ANY($2))`,
			order.ID, ids,
		); err != nil {
			return fmt.Errorf("unlink order %s: %w", order.ID, err)
		}
		if _, err := db.Exec(ctx, `
			INSERT INTO order_subscriptions (order_id, subscription_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`,
			order.ID, ids,
		); err != nil {
			return fmt.Errorf("link order %s: %w", order.ID, err)
		}
		return nil
	})
}

func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrOrderNotFound
	}
	return nil
}

// OrdersForSubscription returns the related orders newest first.
func (s *Store) OrdersForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*subscription.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.data
		FROM orders o
		JOIN order_subscriptions os ON os.order_id = o.id
		WHERE os.subscription_id = $1`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders for subscription %s: %w", subscriptionID, err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("list orders for subscription %s: %w", subscriptionID, err)
	}

	orders := make([]*subscription.Order, 0, len(raw))
	for _, data := range raw {
		order, err := decodeOrder(data)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	subscription.SortNewestFirst(orders)
	return orders, nil
}

func decodeOrder(data []byte) (*subscription.Order, error) {
	order := &subscription.Order{}
	if err := json.Unmarshal(data, order); err != nil {
		return nil, errors.Join(ErrFailedToDecode, err)
	}
	return order, nil
}
