package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/nuestra-carne/internal/domain/order"
	"github.com/xenking/nuestra-carne/internal/domain/promotion"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func sampleOrder(id string) *order.Order {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:       id,
		Customer: order.Customer{Name: "Ana", Phone: "1", Email: "ana@example.com"},
		LineItems: []order.LineItem{{
			ProductCode:  "A",
			ProductName:  "Picaña",
			Quantity:     decimal.RequireFromString("1.25"),
			Unit:         "libras",
			LineSubtotal: decimal.RequireFromString("18.75"),
		}},
		Total:     decimal.RequireFromString("22.25"),
		Status:    order.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCollection_MissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCollection[order.Order](filepath.Join(dir, "orders.json"))

	items, err := c.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, os.WriteFile(c.Path(), []byte("  \n"), 0o644))
	items, err = c.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCollection_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCollection[order.Order](filepath.Join(dir, "orders.json"))
	require.NoError(t, os.WriteFile(c.Path(), []byte("{not json"), 0o644))

	_, err := c.All(context.Background())
	require.Error(t, err)
}

func TestCollection_FailedMutationLeavesFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCollection[string](filepath.Join(dir, "names.json"))
	require.NoError(t, c.Replace(context.Background(), []string{"a"}))

	before, err := os.ReadFile(c.Path())
	require.NoError(t, err)

	err = c.Mutate(context.Background(), func(items []string) ([]string, error) {
		return append(items, "b"), errors.New("boom")
	})
	require.Error(t, err)

	after, err := os.ReadFile(c.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCollection_CancelledContext(t *testing.T) {
	c := NewCollection[string](filepath.Join(t.TempDir(), "x.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.All(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t).Orders()

	require.NoError(t, repo.Create(ctx, sampleOrder("o1")))
	require.NoError(t, repo.Create(ctx, sampleOrder("o2")))
	require.Error(t, repo.Create(ctx, sampleOrder("o1")))

	got, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Customer.Name)
	assert.True(t, decimal.RequireFromString("1.25").Equal(got.LineItems[0].Quantity))
	assert.True(t, got.CreatedAt.Equal(sampleOrder("o1").CreatedAt))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o1", list[0].ID)
	assert.Equal(t, "o2", list[1].ID)
}

func TestOrderRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t).Orders()
	require.NoError(t, repo.Create(ctx, sampleOrder("o1")))

	later := time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)
	updated, err := repo.Update(ctx, "o1", func(o *order.Order) error {
		return order.Lifecycle{}.Transition(o, "en_camino", "sale 2pm", later)
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusOutForDelivery, updated.Status)

	stored, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusOutForDelivery, stored.Status)
	assert.Equal(t, "sale 2pm", stored.Notes)
	assert.True(t, stored.UpdatedAt.Equal(later))

	_, err = repo.Update(ctx, "o1", func(o *order.Order) error {
		return order.Lifecycle{}.Transition(o, "perdido", "", later.Add(time.Hour))
	})
	require.ErrorIs(t, err, order.ErrInvalidState)

	stored, err = repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(later))

	_, err = repo.Update(ctx, "missing", func(*order.Order) error { return nil })
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t).Orders()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.Create(ctx, sampleOrder(string(rune('a'+i)))))
		}(i)
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 20)
}

func samplePromotion(id, code string, maxUses int) *promotion.Promotion {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &promotion.Promotion{
		ID:             id,
		Code:           code,
		Name:           "Promo " + code,
		Kind:           promotion.KindPercentage,
		Value:          decimal.NewFromInt(10),
		ValidFrom:      now,
		ValidUntil:     now.AddDate(0, 1, 0),
		MaxRedemptions: maxUses,
		Active:         true,
		CreatedAt:      now,
	}
}

func TestPromotionRepository(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t).Promotions()

	require.NoError(t, repo.Create(ctx, samplePromotion("p1", "ASADO", 10)))
	require.ErrorIs(t, repo.Create(ctx, samplePromotion("p2", "asado", 10)), promotion.ErrDuplicateCode)
	require.NoError(t, repo.Create(ctx, samplePromotion("p2", "PARRILLA", 10)))

	got, err := repo.FindByCode(ctx, "ASADO")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)

	_, err = repo.FindByCode(ctx, "NONE")
	require.ErrorIs(t, err, promotion.ErrNotFound)

	_, err = repo.Update(ctx, "p2", func(p *promotion.Promotion) error {
		p.Code = "ASADO"
		return nil
	})
	require.ErrorIs(t, err, promotion.ErrDuplicateCode)

	updated, err := repo.Update(ctx, "p2", func(p *promotion.Promotion) error {
		p.Active = false
		return nil
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	require.NoError(t, repo.Delete(ctx, "p1"))
	require.ErrorIs(t, repo.Delete(ctx, "p1"), promotion.ErrNotFound)
	_, err = repo.Get(ctx, "p1")
	require.ErrorIs(t, err, promotion.ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].ID)
}

func TestPromotionRepository_RedeemNeverExceedsCap(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t).Promotions()
	require.NoError(t, repo.Create(ctx, samplePromotion("p1", "LIMITADO", 5)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		exhausted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Redeem(ctx, "p1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, promotion.ErrUsageExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, exhausted)

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentRedemptions)

	_, err = repo.Redeem(ctx, "missing")
	require.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestStore_Ping(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(s.dir))
	require.Error(t, s.Ping(context.Background()))
}

func TestPromotionRepository_ReadsOriginalFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, PromotionsFile)
	raw := `[{
    "id": "1718000000000",
    "codigo": "BIENVENIDO",
    "nombre": "Bienvenido",
    "descripcion": "10% en tu primera compra",
    "tipo": "porcentaje",
    "valor": 10,
    "montoMinimo": 25,
    "fechaInicio": "2025-06-01T00:00:00.000Z",
    "fechaFin": "2025-07-01T00:00:00.000Z",
    "activa": true,
    "usoMaximo": 999999,
    "usoActual": 3,
    "aplicableA": "todos",
    "categorias": [],
    "fechaCreacion": "2025-06-01T00:00:00.000Z"
  }]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	p, err := NewPromotionRepository(path).FindByCode(context.Background(), "BIENVENIDO")
	require.NoError(t, err)
	assert.Equal(t, promotion.KindPercentage, p.Kind)
	assert.True(t, decimal.NewFromInt(25).Equal(p.MinimumOrderAmount))
	assert.Equal(t, 3, p.CurrentRedemptions)
	assert.True(t, p.Active)
}

func TestPromotionRepository_ReadsDateOnlyBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), PromotionsFile)
	raw := `[{"id":"1","codigo":"PARRILLA","tipo":"fijo","valor":5,"montoMinimo":0,` +
		`"fechaInicio":"2025-06-01","fechaFin":"2025-07-01","activa":true,"usoMaximo":10,"usoActual":0}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	repo := NewPromotionRepository(path)
	p, err := repo.FindByCode(context.Background(), "parrilla")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), p.ValidFrom)
	assert.Equal(t, time.Date(2025, 7, 1, 23, 59, 59, 999999999, time.UTC), p.ValidUntil)

	// A rewrite keeps the widened bounds.
	_, err = repo.Redeem(context.Background(), p.ID)
	require.NoError(t, err)
	again, err := NewPromotionRepository(path).Get(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, again.ValidUntil.Equal(p.ValidUntil))
	assert.Equal(t, 1, again.CurrentRedemptions)
}
