package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/starlighttrader/storefront/internal/domain/billing"
)

var _ billing.Repository = (*BillingRepository)(nil)

const insertBilling = `
INSERT INTO billing_records (
    order_id, first_name, last_name, email, phone, address, city, state,
    country, postal_code, item, amount, currency, payment_status, payment_mode, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const selectBillingByOrder = `
SELECT order_id, first_name, last_name, email, phone, address, city, state,
       country, postal_code, item, amount, currency, payment_status, payment_mode, created_at
FROM billing_records
WHERE order_id = $1
ORDER BY id`

// BillingRepository implements billing.Repository backed by PostgreSQL.
type BillingRepository struct {
	pool *pgxpool.Pool
}

// NewBillingRepository returns a BillingRepository that uses the given pool.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepository {
	return &BillingRepository{pool: pool}
}

// Insert stores r. Repeated order IDs produce additional rows.
func (r *BillingRepository) Insert(ctx context.Context, rec billing.Record) error {
	d := rec.Details
	var amount *decimal.Decimal
	if !d.Amount.IsZero() {
		amount = &d.Amount
	}
	_, err := r.pool.Exec(ctx, insertBilling,
		rec.OrderID, d.FirstName, d.LastName, d.Email, d.Phone, d.Address, d.City, d.State,
		d.Country, d.PostalCode, d.Item, amount, d.Currency, rec.Status, rec.Mode, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting billing record %q: %w", rec.OrderID, err)
	}
	return nil
}

// FindByOrderID returns every record stored for orderID, oldest first.
func (r *BillingRepository) FindByOrderID(ctx context.Context, orderID string) ([]billing.Record, error) {
	rows, err := r.pool.Query(ctx, selectBillingByOrder, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying billing records %q: %w", orderID, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.Record, error) {
		var (
			rec    billing.Record
			amount decimal.NullDecimal
		)
		d := &rec.Details
		err := row.Scan(
			&rec.OrderID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Address, &d.City, &d.State,
			&d.Country, &d.PostalCode, &d.Item, &amount, &d.Currency, &rec.Status, &rec.Mode, &rec.CreatedAt,
		)
		if amount.Valid {
			d.Amount = amount.Decimal
		}
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning billing records %q: %w", orderID, err)
	}
	return records, nil
}
