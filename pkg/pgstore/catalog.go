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

// Catalog reads products from the products table.
type Catalog struct {
	db *pgxpool.Pool
}

var (
	_ subscription.Catalog        = (*Catalog)(nil)
	_ subscription.ProductsSource = (*Catalog)(nil)
)

// NewCatalog returns a catalog using the pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{db: pool}
}

func (c *Catalog) Product(ctx context.Context, id uuid.UUID) (subscription.Product, error) {
	var data []byte
	if err := c.db.QueryRow(ctx, `SELECT data FROM products WHERE id = $1`, id).Scan(&data); err != nil {
		if pg.IsNotFoundError(err) {
			return subscription.Product{}, subscription.ErrProductNotFound
		}
		return subscription.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	var p subscription.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return subscription.Product{}, errors.Join(ErrFailedToDecode, err)
	}
	return p, nil
}

func (c *Catalog) Load(ctx context.Context) (map[uuid.UUID]subscription.Product, error) {
	rows, err := c.db.Query(ctx, `SELECT data FROM products`)
	if err != nil {
		return nil, errors.Join(subscription.ErrFailedToLoadProducts, err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, errors.Join(subscription.ErrFailedToLoadProducts, err)
	}
	products := make(map[uuid.UUID]subscription.Product, len(raw))
	for _, data := range raw {
		var p subscription.Product
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Join(ErrFailedToDecode, err)
		}
		products[p.ID] = p
	}
	return products, nil
}

// Import validates and upserts the products in one transaction.
func (c *Catalog) Import(ctx context.Context, products ...subscription.Product) error {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return pg.InTx(ctx, c.db, func(tx pgx.Tx) error {
		for _, p := range products {
			data, err := json.Marshal(p)
			if err != nil {
				return errors.Join(ErrFailedToEncode, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO products (id, data, updated_at) VALUES ($1, $2, now())
				ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
				p.ID, data,
			); err != nil {
				return fmt.Errorf("save product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}
