package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/switchkit/pkg/audit"
	"github.com/dmitrymomot/switchkit/pkg/pg"
)

// AuditStorage writes audit events to the audit_events table.
type AuditStorage struct {
	db *pgxpool.Pool
}

var _ audit.Storage = (*AuditStorage)(nil)

// NewAuditStorage returns an audit storage using the pool.
func NewAuditStorage(pool *pgxpool.Pool) *AuditStorage {
	return &AuditStorage{db: pool}
}

func (s *AuditStorage) Store(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	return pg.InTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, e := range events {
			if _, err := tx.Exec(ctx, `
				INSERT INTO audit_events
					(id, actor_id, action, resource, resource_id, message, result, error, metadata, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				e.ID, e.ActorID, e.Action, e.Resource, e.ResourceID, e.Message,
				string(e.Result), e.Error, e.Metadata, e.CreatedAt,
			); err != nil {
				return fmt.Errorf("store audit event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// Events returns the events recorded for a resource, oldest first.
func (s *AuditStorage) Events(ctx context.Context, resource, resourceID string) ([]audit.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, actor_id, action, resource, resource_id, message, result, error, metadata, created_at
		FROM audit_events
		WHERE resource = $1 AND resource_id = $2
		ORDER BY created_at, id`,
		resource, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			e      audit.Event
			result string
		)
		err := row.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID, &e.Message,
			&result, &e.Error, &e.Metadata, &e.CreatedAt)
		e.Result = audit.Result(result)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
