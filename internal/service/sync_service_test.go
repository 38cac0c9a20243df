package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/scratch-coupon-service/internal/cache"
	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

type fakeRemote struct {
	created   []string
	disabled  []string
	failOn    map[string]error
	discounts map[string]*shopify.Discount
	getErr    error
}

func (f *fakeRemote) CreateDiscount(_ context.Context, code string) (string, error) {
	if err := f.failOn[code]; err != nil {
		return "", err
	}
	f.created = append(f.created, code)
	return fmt.Sprintf("gid://shopify/DiscountCodeNode/%d", len(f.created)), nil
}

func (f *fakeRemote) DisableDiscount(_ context.Context, id string) error {
	if err := f.failOn[id]; err != nil {
		return err
	}
	f.disabled = append(f.disabled, id)
	return nil
}

func (f *fakeRemote) GetDiscount(_ context.Context, id string) (*shopify.Discount, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.discounts[id], nil
}

func TestSyncAllPendingContinuesAfterFailure(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "AAA111", "BBB222", "CCC333")
	store.Put(models.Coupon{Code: "USD444", Status: models.StatusUsed})
	remote := &fakeRemote{failOn: map[string]error{
		"BBB222": &shopify.HTTPError{StatusCode: 429, Status: "429 Too Many Requests"},
	}}
	codes := cache.NewCouponCache(0)
	sync := NewSyncService(store, svc, remote, nil, codes)

	summary, err := sync.SyncAllPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, []string{"AAA111", "CCC333"}, remote.created)

	for _, r := range summary.Results {
		if r.Code == "BBB222" {
			require.False(t, r.Success)
			require.Equal(t, shopify.CategoryRateLimited, r.Category)
		}
	}

	c, err := svc.Get(context.Background(), "AAA111")
	require.NoError(t, err)
	require.True(t, c.ShopifySynced)
	require.Equal(t, models.ShopifyActive, c.ShopifyStatus)
	code, ok := codes.Get(context.Background(), c.ShopifyDiscountID)
	require.True(t, ok)
	require.Equal(t, "AAA111", code)

	c, err = svc.Get(context.Background(), "BBB222")
	require.NoError(t, err)
	require.False(t, c.ShopifySynced)
}

func TestSyncOne(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, "ONE001")
	store.Put(models.Coupon{Code: "OFF002", Status: models.StatusInactive})
	remote := &fakeRemote{}
	sync := NewSyncService(store, svc, remote, nil, nil)
	ctx := context.Background()

	r, err := sync.SyncOne(ctx, "one001")
	require.NoError(t, err)
	require.True(t, r.Success)
	require.NotEmpty(t, r.DiscountID)

	r, err = sync.SyncOne(ctx, "ONE001")
	require.NoError(t, err)
	require.Equal(t, "already synced", r.Message)
	require.Len(t, remote.created, 1)

	_, err = sync.SyncOne(ctx, "OFF002")
	require.ErrorIs(t, err, ErrNotActive)

	_, err = sync.SyncOne(ctx, "NOP000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDisableRemote(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "DIS001", Status: models.StatusUsed, ShopifyDiscountID: "d1", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	store.Put(models.Coupon{Code: "DIS002", Status: models.StatusUsed, ShopifyDiscountID: "d2", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	remote := &fakeRemote{failOn: map[string]error{"d2": errors.New("401 Unauthorized")}}
	sync := NewSyncService(store, svc, remote, nil, nil)
	ctx := context.Background()

	c, _ := svc.Get(ctx, "DIS001")
	require.NoError(t, sync.DisableRemote(ctx, c))
	c, _ = svc.Get(ctx, "DIS001")
	require.Equal(t, models.ShopifyDisabled, c.ShopifyStatus)

	c, _ = svc.Get(ctx, "DIS002")
	require.Error(t, sync.DisableRemote(ctx, c))
	c, _ = svc.Get(ctx, "DIS002")
	require.Equal(t, models.StatusUsed, c.Status)
	require.Equal(t, models.ShopifyActive, c.ShopifyStatus)

	require.NoError(t, sync.DisableRemote(ctx, &models.Coupon{Code: "NOL000"}))
}

func TestReconcileAll(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "REC001", Status: models.StatusActive, ShopifyDiscountID: "d1", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	store.Put(models.Coupon{Code: "REC002", Status: models.StatusActive, ShopifyDiscountID: "d2", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	store.Put(models.Coupon{Code: "REC003", Status: models.StatusActive, ShopifyDiscountID: "d3", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	remote := &fakeRemote{discounts: map[string]*shopify.Discount{
		"d1": {ID: "d1", Status: "ACTIVE"},
		"d2": {ID: "d2", Status: "EXPIRED"},
	}}
	sync := NewSyncService(store, svc, remote, nil, nil)
	ctx := context.Background()

	summary, err := sync.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Updated)
	require.Equal(t, 2, summary.Deactivated)
	require.Equal(t, 0, summary.Failed)

	c, _ := svc.Get(ctx, "REC001")
	require.Equal(t, models.StatusActive, c.Status)
	c, _ = svc.Get(ctx, "REC002")
	require.Equal(t, models.StatusInactive, c.Status)
	require.Equal(t, models.ShopifyDisabled, c.ShopifyStatus)
	c, _ = svc.Get(ctx, "REC003")
	require.Equal(t, models.StatusInactive, c.Status)
	require.Equal(t, models.ShopifyDeleted, c.ShopifyStatus)
	require.Equal(t, ReasonShopifyDeleted, c.EmployeeCode)
}

func TestReconcileOneRemoteFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.Put(models.Coupon{Code: "REC004", Status: models.StatusActive, ShopifyDiscountID: "d4", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})
	seed(t, store, "REC005")
	remote := &fakeRemote{getErr: errors.New("throttled")}
	sync := NewSyncService(store, svc, remote, nil, nil)
	ctx := context.Background()

	item, err := sync.ReconcileOne(ctx, "REC004")
	require.NoError(t, err)
	require.False(t, item.Success)
	require.Contains(t, item.Message, "rate limit")

	item, err = sync.ReconcileOne(ctx, "REC005")
	require.NoError(t, err)
	require.False(t, item.Success)
	require.Equal(t, "coupon is not synced with shopify", item.Message)
}
