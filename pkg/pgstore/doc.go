// Package pgstore persists the switching engine state in PostgreSQL.
//
// Subscriptions, orders and products are stored as JSONB documents next to a
// few indexed columns used for lookups and locking. The package also provides
// a durable queue backend and an audit log storage over the same pool.
//
// Schema migrations are embedded and applied with pg.Migrate:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg, log); err != nil {
//		return err
//	}
//	repo := pgstore.New(pool)
package pgstore
