//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/starlighttrader/storefront/internal/domain/billing"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
}

func TestBillingRepository(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool), "migrations are idempotent")

	repo := NewBillingRepository(pool)
	at := time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)
	rec := billing.Record{
		OrderID: "SLTPRO-161026-1430",
		Details: billing.Details{
			FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210",
			Address: "12 MG Road", City: "Pune", State: "MH", Country: "India", PostalCode: "411001",
			Item: "StarLightTrader Pro", Amount: decimal.RequireFromString("59999.50"), Currency: "INR",
		},
		Status:    billing.StatusInitiated,
		Mode:      "PhonePe",
		CreatedAt: at,
	}

	require.NoError(t, repo.Insert(ctx, rec))

	// Same-minute order IDs collide; both submissions are kept.
	second := rec
	second.Details.Amount = decimal.Zero
	second.Mode = "UPI"
	require.NoError(t, repo.Insert(ctx, second))

	got, err := repo.FindByOrderID(ctx, rec.OrderID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "PhonePe", got[0].Mode)
	assert.True(t, rec.Details.Amount.Equal(got[0].Details.Amount))
	assert.Equal(t, "411001", got[0].Details.PostalCode)
	assert.True(t, at.Equal(got[0].CreatedAt))
	assert.True(t, got[1].Details.Amount.IsZero())

	none, err := repo.FindByOrderID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
