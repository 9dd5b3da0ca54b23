package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                BIGSERIAL PRIMARY KEY,
	total_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_price_tax   DOUBLE PRECISION,
	shipping_price    DOUBLE PRECISION,
	email             TEXT,
	country           TEXT,
	address           TEXT,
	postal_code       TEXT,
	city              TEXT,
	province          TEXT,
	paid              BOOLEAN NOT NULL DEFAULT false,
	transaction_id    TEXT,
	transaction_error TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS order_products (
	id         BIGSERIAL PRIMARY KEY,
	order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id BIGINT NOT NULL REFERENCES products(id),
	quantity   INTEGER NOT NULL CHECK (quantity >= 1)
);

CREATE INDEX IF NOT EXISTS idx_order_products_order_id ON order_products(order_id);
`

// PostgresStore is the pgx implementation of Store. Orders and their line
// rows are the single source of truth; the snapshot cache is never consulted
// here.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the order tables if missing. The products table must exist
// first (order_products references it).
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("order: apply schema: %w", err)
	}
	return nil
}

// Reset drops and recreates the order tables. Used by the initdb command.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS order_products; DROP TABLE IF EXISTS orders`); err != nil {
		return fmt.Errorf("order: drop tables: %w", err)
	}
	return s.Migrate(ctx)
}

// CreateOrder inserts the order row and its lines in one transaction, so a
// failed line insert never leaves a partial order behind.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *Order) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (total_price, created_at) VALUES ($1, $2) RETURNING id`,
		o.TotalPrice, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("order: insert order: %w", err)
	}

	for _, l := range o.Lines {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_products (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
			id, l.ProductID, l.Quantity,
		)
		if err != nil {
			return 0, fmt.Errorf("order: insert line for product %d: %w", l.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("order: commit: %w", err)
	}

	o.ID = id
	return id, nil
}

// GetOrder loads the order row and its lines joined with product attributes.
// Returns nil, nil when the order does not exist.
func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (*Order, error) {
	const q = `
		SELECT id, total_price, total_price_tax, shipping_price,
		       COALESCE(email, ''), COALESCE(country, ''), COALESCE(address, ''),
		       COALESCE(postal_code, ''), COALESCE(city, ''), COALESCE(province, ''),
		       paid, COALESCE(transaction_id, ''), COALESCE(transaction_error, ''),
		       created_at
		FROM   orders
		WHERE  id = $1`

	var o Order
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.TotalPrice, &o.TotalPriceTax, &o.ShippingPrice,
		&o.Email, &o.Shipping.Country, &o.Shipping.Address,
		&o.Shipping.PostalCode, &o.Shipping.City, &o.Shipping.Province,
		&o.Paid, &o.TransactionID, &o.TransactionError,
		&o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("order: select %d: %w", id, err)
	}

	const linesQ = `
		SELECT op.product_id, op.quantity, p.name, p.price, p.weight
		FROM   order_products op
		JOIN   products p ON p.id = op.product_id
		WHERE  op.order_id = $1
		ORDER  BY op.id`

	rows, err := s.pool.Query(ctx, linesQ, id)
	if err != nil {
		return nil, fmt.Errorf("order: select lines for %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Name, &l.UnitPrice, &l.Weight); err != nil {
			return nil, fmt.Errorf("order: scan line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: select lines for %d: %w", id, err)
	}

	return &o, nil
}

func (s *PostgresStore) UpdateShipping(ctx context.Context, id int64, email string, info ShippingInfo, taxTotal, shippingPrice float64) error {
	const q = `
		UPDATE orders
		SET    email = $2, country = $3, address = $4, postal_code = $5,
		       city = $6, province = $7, total_price_tax = $8, shipping_price = $9
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id,
		email, info.Country, info.Address, info.PostalCode, info.City, info.Province,
		taxTotal, shippingPrice,
	)
	if err != nil {
		return fmt.Errorf("order: update shipping for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order: update shipping: order %d vanished", id)
	}
	return nil
}

func (s *PostgresStore) RecordPaymentSuccess(ctx context.Context, id int64, transactionID string) error {
	const q = `
		UPDATE orders
		SET    paid = true, transaction_id = $2, transaction_error = NULL
		WHERE  id = $1`

	if _, err := s.pool.Exec(ctx, q, id, transactionID); err != nil {
		return fmt.Errorf("order: record payment success for %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) RecordPaymentFailure(ctx context.Context, id int64, errorJSON string) error {
	const q = `UPDATE orders SET transaction_error = $2 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, q, id, errorJSON); err != nil {
		return fmt.Errorf("order: record payment failure for %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]Summary, error) {
	const q = `
		SELECT o.id, COALESCE(o.email, ''), o.total_price, o.paid,
		       (SELECT COUNT(*) FROM order_products op WHERE op.order_id = o.id)
		FROM   orders o
		ORDER  BY o.id DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Email, &sum.TotalPrice, &sum.Paid, &sum.ProductsCount); err != nil {
			return nil, fmt.Errorf("order: scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}

	return summaries, nil
}
