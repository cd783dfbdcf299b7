//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("carne"),
		tcpostgres.WithUsername("carne"),
		tcpostgres.WithPassword("carne"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

	t.Run("orders", func(t *testing.T) {
		repo := NewOrderRepository(pool)
		o := &order.Order{
			ID:       "o1",
			Customer: order.Customer{Name: "Ana", Phone: "1", Email: "ana@example.com", Address: "Calle 1"},
			LineItems: []order.LineItem{{
				ProductCode: "A", ProductName: "Picaña", Quantity: decimal.RequireFromString("1.5"),
				Unit: "libras", LineSubtotal: decimal.RequireFromString("22.50"),
			}},
			DeclaredTotal: decimal.RequireFromString("26.00"),
			Total:         decimal.RequireFromString("26.00"),
			Status:        order.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		o.Pricing.Subtotal = decimal.RequireFromString("22.50")
		o.Pricing.DeliveryFee = decimal.RequireFromString("3.50")
		o.Pricing.Total = o.Total
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.Get(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Customer.Name)
		assert.True(t, o.Total.Equal(got.Total))
		assert.True(t, decimal.RequireFromString("1.5").Equal(got.LineItems[0].Quantity))

		_, err = repo.Get(ctx, "missing")
		require.ErrorIs(t, err, order.ErrNotFound)

		later := now.Add(time.Hour)
		updated, err := repo.Update(ctx, "o1", func(o *order.Order) error {
			return order.Lifecycle{}.Transition(o, "entregado", "ok", later)
		})
		require.NoError(t, err)
		assert.Equal(t, order.StatusDelivered, updated.Status)

		_, err = repo.Update(ctx, "o1", func(o *order.Order) error {
			return order.Lifecycle{}.Transition(o, "perdido", "", later)
		})
		require.ErrorIs(t, err, order.ErrInvalidState)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].UpdatedAt.Equal(later))
	})

	t.Run("sub-cent amounts", func(t *testing.T) {
		require.NoError(t, RunMigrations(ctx, pool), "schema is re-runnable")

		repo := NewOrderRepository(pool)
		o := &order.Order{
			ID:       "o2",
			Customer: order.Customer{Name: "Ana"},
			LineItems: []order.LineItem{{
				ProductCode: "A", ProductName: "Picaña", Quantity: decimal.RequireFromString("3.333"),
				LineSubtotal: decimal.RequireFromString("49.996"),
			}},
			DeclaredTotal: decimal.RequireFromString("53.4961"),
			Total:         decimal.RequireFromString("53.496"),
			TotalMismatch: true,
			Status:        order.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		o.Pricing.Subtotal = decimal.RequireFromString("49.996")
		o.Pricing.DeliveryFee = decimal.RequireFromString("3.50")
		o.Pricing.Total = o.Total
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.Get(ctx, "o2")
		require.NoError(t, err)
		assert.True(t, o.DeclaredTotal.Equal(got.DeclaredTotal), "declared %s", got.DeclaredTotal)
		assert.True(t, o.Pricing.Subtotal.Equal(got.Pricing.Subtotal), "subtotal %s", got.Pricing.Subtotal)
		assert.True(t, o.Total.Equal(got.Total), "total %s", got.Total)
		assert.True(t, got.TotalMismatch)
	})

	t.Run("promotions", func(t *testing.T) {
		repo := NewPromotionRepository(pool)
		p := &promotion.Promotion{
			ID: "p1", Code: "ASADO", Name: "Asado", Kind: promotion.KindPercentage,
			Value: decimal.NewFromInt(10), ValidFrom: now, ValidUntil: now.AddDate(0, 1, 0),
			MaxRedemptions: 3, Active: true, AppliesTo: "todos", CreatedAt: now,
		}
		require.NoError(t, repo.Create(ctx, p))

		dup := *p
		dup.ID = "p2"
		dup.Code = "asado"
		require.ErrorIs(t, repo.Create(ctx, &dup), promotion.ErrDuplicateCode)

		got, err := repo.FindByCode(ctx, "asado")
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ID)
		assert.Equal(t, []string{}, got.Categories)

		var ok atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Redeem(ctx, "p1")
				if err == nil {
					ok.Add(1)
					return
				}
				assert.True(t, errors.Is(err, promotion.ErrUsageExhausted), "unexpected %v", err)
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 3, ok.Load())

		got, err = repo.Get(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.CurrentRedemptions)

		_, err = repo.Redeem(ctx, "missing")
		require.ErrorIs(t, err, promotion.ErrNotFound)

		updated, err := repo.Update(ctx, "p1", func(p *promotion.Promotion) error {
			p.Active = false
			return nil
		})
		require.NoError(t, err)
		assert.False(t, updated.Active)

		require.NoError(t, repo.Delete(ctx, "p1"))
		require.ErrorIs(t, repo.Delete(ctx, "p1"), promotion.ErrNotFound)
	})
}
