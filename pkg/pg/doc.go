// Package pg provides PostgreSQL plumbing on top of pgx/v5: pool creation with
// retries, goose migrations from an fs.FS, transaction helpers, a health probe
// and SQLSTATE classifiers.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//		return err
//	}
//	err = pg.InTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "UPDATE ...")
//		return err
//	})
package pg
