package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/repository/memory"
)

func newTestService(t *testing.T) (*CouponService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewCouponService(store, store)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	return svc, store
}

func seed(t *testing.T, store *memory.Store, codes ...string) {
	t.Helper()
	for _, code := range codes {
		ok, err := store.Insert(context.Background(), code, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRedeemTwice(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "ABC123")
	ctx := context.Background()

	res, err := svc.Redeem(ctx, "abc123", "EMP1", "Adyar")
	require.NoError(t, err)
	require.Equal(t, models.StatusUsed, res.Coupon.Status)
	require.NotNil(t, res.Coupon.UsedDate)
	require.Equal(t, "EMP1", res.Coupon.EmployeeCode)
	require.Equal(t, "Adyar", res.Coupon.StoreLocation)
	require.False(t, res.DisableRemote)
	firstUsed := *res.Coupon.UsedDate

	_, err = svc.Redeem(ctx, "ABC123", "EMP2", "Porur")
	require.ErrorIs(t, err, ErrAlreadyUsed)

	c, err := svc.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, "EMP1", c.EmployeeCode)
	require.Equal(t, "Adyar", c.StoreLocation)
	require.True(t, firstUsed.Equal(*c.UsedDate))
}

func TestRedeemFlagsRemoteDisable(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "SHP001", Status: models.StatusActive, ShopifyDiscountID: "gid://shopify/DiscountCodeNode/1", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})

	res, err := svc.Redeem(context.Background(), "SHP001", "EMP1", "Porur")
	require.NoError(t, err)
	require.True(t, res.DisableRemote)
}

func TestRedeemRejectsUnknownAndInactive(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "OFF001", Status: models.StatusInactive})
	ctx := context.Background()

	_, err := svc.Redeem(ctx, "NOP000", "EMP1", "Adyar")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Redeem(ctx, "OFF001", "EMP1", "Adyar")
	require.ErrorIs(t, err, ErrNotActive)
}

func TestRedeemChecksStatusBeforeUsedDate(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "DEA001")
	ctx := context.Background()

	res, err := svc.DeactivateLocally(ctx, "DEA001", ReasonShopifyDisabled)
	require.NoError(t, err)
	require.True(t, res.Changed)
	c, err := store.GetByCode(ctx, "DEA001")
	require.NoError(t, err)
	require.NotNil(t, c.UsedDate)

	_, err = svc.Redeem(ctx, "DEA001", "EMP1", "Adyar")
	require.ErrorIs(t, err, ErrNotActive)

	stamped := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	store.Put(models.Coupon{Code: "ODD001", Status: models.StatusActive, UsedDate: &stamped})
	_, err = svc.Redeem(ctx, "ODD001", "EMP1", "Adyar")
	require.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestScratchTwiceKeepsFirstDate(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "SCR001")
	ctx := context.Background()

	c, err := svc.Scratch(ctx, "SCR001")
	require.NoError(t, err)
	require.True(t, c.IsScratched)
	require.NotNil(t, c.ScratchedDate)
	first := *c.ScratchedDate

	_, err = svc.Scratch(ctx, "SCR001")
	require.ErrorIs(t, err, ErrAlreadyScratched)

	c, err = svc.Get(ctx, "SCR001")
	require.NoError(t, err)
	require.True(t, first.Equal(*c.ScratchedDate))

	_, err = svc.Scratch(ctx, "NOP000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScratchDoesNotAffectRedemption(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "SCR002")
	ctx := context.Background()

	_, err := svc.Scratch(ctx, "SCR002")
	require.NoError(t, err)
	res, err := svc.Redeem(ctx, "SCR002", "EMP1", "Velachery")
	require.NoError(t, err)
	require.True(t, res.Coupon.IsScratched)
	require.Equal(t, models.StatusUsed, res.Coupon.Status)
}

func TestDeactivateLocally(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "DEA001")
	ctx := context.Background()

	res, err := svc.DeactivateLocally(ctx, "DEA001", ReasonShopifyDisabled)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, models.StatusInactive, res.Coupon.Status)
	require.Equal(t, ReasonShopifyDisabled, res.Coupon.EmployeeCode)
	require.NotNil(t, res.Coupon.UsedDate)

	res, err = svc.DeactivateLocally(ctx, "DEA001", ReasonShopifyDeleted)
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Equal(t, ReasonShopifyDisabled, res.Coupon.EmployeeCode)

	_, err = svc.Redeem(ctx, "DEA001", "EMP1", "Adyar")
	require.ErrorIs(t, err, ErrNotActive)
}

func TestApplyRemoteStatusDisabledCascades(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "REM001", Status: models.StatusActive, ShopifyDiscountID: "d1", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	ctx := context.Background()
	c, err := svc.Get(ctx, "REM001")
	require.NoError(t, err)

	change, err := svc.ApplyRemoteStatus(ctx, c, models.ShopifyDisabled)
	require.NoError(t, err)
	require.True(t, change.StatusUpdated)
	require.True(t, change.Deactivated)

	c, err = svc.Get(ctx, "REM001")
	require.NoError(t, err)
	require.Equal(t, models.StatusInactive, c.Status)
	require.Equal(t, models.ShopifyDisabled, c.ShopifyStatus)
}

func TestApplyRemoteStatusNeverReactivates(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "REM002", Status: models.StatusInactive, ShopifyDiscountID: "d2", ShopifySynced: true, ShopifyStatus: models.ShopifyDisabled})
	ctx := context.Background()
	c, err := svc.Get(ctx, "REM002")
	require.NoError(t, err)

	change, err := svc.ApplyRemoteStatus(ctx, c, models.ShopifyActive)
	require.NoError(t, err)
	require.True(t, change.StatusUpdated)
	require.False(t, change.Deactivated)

	c, err = svc.Get(ctx, "REM002")
	require.NoError(t, err)
	require.Equal(t, models.StatusInactive, c.Status)
	require.Equal(t, models.ShopifyActive, c.ShopifyStatus)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "LST001", "LST002")

	list, err := svc.List(context.Background(), models.CouponFilter{Code: "lst001"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.List(context.Background(), models.CouponFilter{Status: "expired"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
