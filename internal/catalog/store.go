package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          BIGINT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL,
	weight      INTEGER NOT NULL DEFAULT 0,
	in_stock    BOOLEAN NOT NULL DEFAULT false,
	image       TEXT NOT NULL DEFAULT ''
)`

// Store is the Postgres-backed catalog repository.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the products table if it does not exist. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("catalog: apply schema: %w", err)
	}
	return nil
}

// Reset drops and recreates the products table. Used by the initdb command.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS products CASCADE`); err != nil {
		return fmt.Errorf("catalog: drop table: %w", err)
	}
	return s.Migrate(ctx)
}

// Get returns nil with no error when the product does not exist, so callers
// can distinguish "unknown item" from a store failure.
func (s *Store) Get(ctx context.Context, id int64) (*Product, error) {
	const q = `
		SELECT id, name, description, price, weight, in_stock, image
		FROM   products
		WHERE  id = $1`

	var p Product
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Weight, &p.InStock, &p.Image,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get product %d: %w", id, err)
	}
	return &p, nil
}

// List returns one page of products ordered by id, plus the total count for
// the pagination envelope.
func (s *Store) List(ctx context.Context, page, limit int) ([]Product, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	const q = `
		SELECT id, name, description, price, weight, in_stock, image
		FROM   products
		ORDER  BY id
		LIMIT  $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, q, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Weight, &p.InStock, &p.Image); err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}

	return products, total, nil
}

// Upsert inserts or refreshes a product. The feed is the source of truth, so
// an existing row is overwritten rather than preserved.
func (s *Store) Upsert(ctx context.Context, p Product) error {
	const q = `
		INSERT INTO products (id, name, description, price, weight, in_stock, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			weight = EXCLUDED.weight,
			in_stock = EXCLUDED.in_stock,
			image = EXCLUDED.image`

	if _, err := s.pool.Exec(ctx, q, p.ID, p.Name, p.Description, p.Price, p.Weight, p.InStock, p.Image); err != nil {
		return fmt.Errorf("catalog: upsert product %d: %w", p.ID, err)
	}
	return nil
}
