package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(now time.Time, promos ...*Promotion) (*Service, *mockPromotionRepo) {
	repo := newMockRepo(promos...)
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	svc.resolver = NewResolver(repo)
	return svc, repo
}

func TestService_Validate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	p := &Promotion{
		ID: "p1", Code: "ASADO10", Name: "Asado", Kind: KindPercentage, Value: dec("10"),
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
		MaxRedemptions: 5, Active: true,
	}
	svc, repo := newTestService(now, p)

	t.Run("returns discount without redeeming", func(t *testing.T) {
		v, err := svc.Validate(context.Background(), "asado10", dec("45.50"))
		require.NoError(t, err)
		assert.Equal(t, "p1", v.Promotion.ID)
		assert.True(t, dec("4.55").Equal(v.Discount))
		assert.Zero(t, repo.byID["p1"].CurrentRedemptions)
	})

	t.Run("empty code", func(t *testing.T) {
		_, err := svc.Validate(context.Background(), "  ", dec("10"))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonCodeRequired, verr.Reason)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Validate(context.Background(), "NOPE", dec("10"))
		require.ErrorIs(t, err, ErrCodeNotFound)
	})
}

func TestService_Apply(t *testing.T) {
	now := time.Now()
	p := &Promotion{ID: "p1", Code: "ONCE", MaxRedemptions: 1, Active: true}
	svc, repo := newTestService(now, p)

	got, err := svc.Apply(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentRedemptions)

	_, err = svc.Apply(context.Background(), "p1")
	require.ErrorIs(t, err, ErrUsageExhausted)
	assert.Equal(t, 1, repo.byID["p1"].CurrentRedemptions)

	_, err = svc.Apply(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Apply(context.Background(), "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ReasonIDRequired, verr.Reason)
}

func TestService_Create(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("applies defaults", func(t *testing.T) {
		svc, repo := newTestService(now)
		p, err := svc.Create(context.Background(), Draft{
			Code:  " bienvenida ",
			Name:  "Bienvenida",
			Kind:  KindFixedAmount,
			Value: dec("5"),
		})
		require.NoError(t, err)

		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "BIENVENIDA", p.Code)
		assert.True(t, p.Active)
		assert.Equal(t, DefaultMaxRedemptions, p.MaxRedemptions)
		assert.Zero(t, p.CurrentRedemptions)
		assert.Equal(t, now, p.ValidFrom)
		assert.Equal(t, now.Add(DefaultValidity), p.ValidUntil)
		assert.Equal(t, "todos", p.AppliesTo)
		assert.Equal(t, []string{}, p.Categories)
		assert.Equal(t, now, p.CreatedAt)
		assert.Contains(t, repo.byID, p.ID)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		svc, _ := newTestService(now)
		for _, d := range []Draft{
			{Code: "X", Kind: KindFixedAmount, Value: dec("5")},
			{Code: "X", Name: "n", Kind: "bogo", Value: dec("5")},
			{Code: "X", Name: "n", Kind: KindFixedAmount},
			{Name: "n", Kind: KindFixedAmount, Value: dec("5")},
		} {
			_, err := svc.Create(context.Background(), d)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ReasonMissingFields, verr.Reason)
		}
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		svc, _ := newTestService(now)
		until := now.Add(-time.Hour)
		_, err := svc.Create(context.Background(), Draft{
			Code: "X", Name: "n", Kind: KindFixedAmount, Value: dec("5"), ValidUntil: &until,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonInvertedWindow, verr.Reason)
	})

	t.Run("duplicate code is case-insensitive", func(t *testing.T) {
		svc, _ := newTestService(now, &Promotion{ID: "old", Code: "PARRILLA"})
		_, err := svc.Create(context.Background(), Draft{
			Code: "parrilla", Name: "n", Kind: KindFixedAmount, Value: dec("5"),
		})
		require.ErrorIs(t, err, ErrDuplicateCode)
	})
}

func TestService_Update(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	original := &Promotion{
		ID: "p1", Code: "OLD", Name: "Old", Kind: KindPercentage, Value: dec("10"),
		ValidFrom: now, ValidUntil: now.Add(time.Hour), Active: true,
	}

	t.Run("merges patch", func(t *testing.T) {
		svc, _ := newTestService(now, original)
		code := "new"
		active := false
		p, err := svc.Update(context.Background(), "p1", Patch{Code: &code, Active: &active})
		require.NoError(t, err)
		assert.Equal(t, "NEW", p.Code)
		assert.False(t, p.Active)
		assert.Equal(t, "Old", p.Name)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		svc, _ := newTestService(now, original)
		kind := Kind("bogo")
		_, err := svc.Update(context.Background(), "p1", Patch{Kind: &kind})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonUnknownKind, verr.Reason)
	})

	t.Run("rejects inverted window without writing", func(t *testing.T) {
		svc, repo := newTestService(now, original)
		until := now.Add(-time.Hour)
		_, err := svc.Update(context.Background(), "p1", Patch{ValidUntil: &until})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ReasonInvertedWindow, verr.Reason)
		assert.Equal(t, now.Add(time.Hour), repo.byID["p1"].ValidUntil)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _ := newTestService(now)
		name := "x"
		_, err := svc.Update(context.Background(), "missing", Patch{Name: &name})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_ActiveAndAll(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	live := &Promotion{ID: "live", Code: "LIVE", Active: true,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	off := &Promotion{ID: "off", Code: "OFF", Active: false,
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), CreatedAt: now.Add(-time.Hour)}
	expired := &Promotion{ID: "expired", Code: "EXP", Active: true,
		ValidFrom: now.Add(-3 * time.Hour), ValidUntil: now.Add(-2 * time.Hour), CreatedAt: now.Add(-3 * time.Hour)}
	svc, _ := newTestService(now, live, off, expired)

	active, err := svc.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)

	all, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "off", all[0].ID)
	assert.Equal(t, "live", all[1].ID)
	assert.Equal(t, "expired", all[2].ID)
}

func TestService_Delete(t *testing.T) {
	svc, repo := newTestService(time.Now(), &Promotion{ID: "p1", Code: "X"})

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.Empty(t, repo.byID)
	require.ErrorIs(t, svc.Delete(context.Background(), "p1"), ErrNotFound)
}
