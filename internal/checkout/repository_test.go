package checkout

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/pagination"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:checkout_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaymentOrder{}, &models.Subscription{}))
	return db
}

func TestExpirySweepMarksEndedSubscriptions(t *testing.T) {
	db := setupCheckoutTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	userID := uuid.New()

	ended := models.Subscription{ID: uuid.New(), UserID: userID, PlanID: uuid.New(), OrderID: uuid.New(), Status: enums.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, -1, -1), CurrentPeriodEnd: now.Add(-time.Hour)}
	live := models.Subscription{ID: uuid.New(), UserID: userID, PlanID: uuid.New(), OrderID: uuid.New(), Status: enums.SubscriptionStatusActive,
		CurrentPeriodStart: now.Add(-time.Hour), CurrentPeriodEnd: now.AddDate(0, 1, 0)}
	require.NoError(t, repo.CreateSubscription(ctx, &ended))
	require.NoError(t, repo.CreateSubscription(ctx, &live))

	job, err := NewExpiryJob(repo, logger.New(logger.Options{Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(ctx))

	var stored models.Subscription
	require.NoError(t, db.First(&stored, "id = ?", ended.ID).Error)
	assert.Equal(t, enums.SubscriptionStatusExpired, stored.Status)

	current, err := repo.FindCurrentSubscription(ctx, userID, now)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, live.ID, current.ID)
}

func TestOrderRoundTrip(t *testing.T) {
	db := setupCheckoutTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.PaymentOrder{ID: uuid.New(), UserID: uuid.New(), PlanID: uuid.New(), Receipt: "rcpt_1", AmountMinor: 49900, Currency: "INR", Status: enums.PaymentOrderStatusCreated}
	require.NoError(t, repo.CreateOrder(ctx, order))

	loaded, err := repo.FindOrderForUpdate(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.EqualValues(t, 49900, loaded.AmountMinor)

	missing, err := repo.FindOrderForUpdate(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListOrdersPagesNewestFirst(t *testing.T) {
	db := setupCheckoutTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	buyer := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		status := enums.PaymentOrderStatusPaid
		if i%2 == 1 {
			status = enums.PaymentOrderStatusFailed
		}
		userID := buyer
		if i == 4 {
			userID = uuid.New()
		}
		order := &models.PaymentOrder{ID: uuid.New(), UserID: userID, PlanID: uuid.New(), Receipt: "rcpt_" + uuid.NewString()[:8],
			AmountMinor: int64(100 * (i + 1)), Currency: "INR", Status: status, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.CreateOrder(ctx, order))
		ids = append(ids, order.ID)
	}

	first, next, err := repo.ListOrders(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, []uuid.UUID{ids[4], ids[3]}, []uuid.UUID{first[0].ID, first[1].ID})
	require.NotNil(t, next)

	second, next, err := repo.ListOrders(ctx, ListQuery{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1]}, []uuid.UUID{second[0].ID, second[1].ID})

	last, next, err := repo.ListOrders(ctx, ListQuery{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, ids[0], last[0].ID)
	assert.Nil(t, next)

	failed, _, err := repo.ListOrders(ctx, ListQuery{Status: string(enums.PaymentOrderStatusFailed), UserID: &buyer})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, ids[3], failed[0].ID)
	assert.Equal(t, ids[1], failed[1].ID)
}

func TestListSubscriptionsFiltersByStatus(t *testing.T) {
	db := setupCheckoutTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusExpired, enums.SubscriptionStatusActive} {
		sub := models.Subscription{ID: uuid.New(), UserID: uuid.New(), PlanID: uuid.New(), OrderID: uuid.New(), Status: status,
			CurrentPeriodStart: now, CurrentPeriodEnd: now.AddDate(0, 1, 0), CreatedAt: now.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.CreateSubscription(ctx, &sub))
	}

	active, next, err := repo.ListSubscriptions(ctx, ListQuery{Status: string(enums.SubscriptionStatusActive), Limit: pagination.MaxLimit})
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.Nil(t, next)
	assert.True(t, active[0].CreatedAt.After(active[1].CreatedAt))
}
