package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/scratch-coupon-service/internal/api/handlers"
	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/repository/memory"
	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
	"github.com/Cheertaboi/scratch-coupon-service/internal/webhook"
)

const testSecret = "hush"

type offlineShopify struct{}

func (offlineShopify) Configured() bool { return false }

func (offlineShopify) RegisterWebhooks(context.Context, string) ([]shopify.WebhookRegistration, error) {
	return nil, shopify.ErrNotConfigured
}

func (offlineShopify) CreateDiscount(context.Context, string) (string, error) {
	return "", shopify.ErrNotConfigured
}

func (offlineShopify) DisableDiscount(context.Context, string) error {
	return shopify.ErrNotConfigured
}

func (offlineShopify) GetDiscount(context.Context, string) (*shopify.Discount, error) {
	return nil, shopify.ErrNotConfigured
}

// expiredShopify is configured and reports every discount as expired.
type expiredShopify struct {
	offlineShopify
}

func (expiredShopify) Configured() bool { return true }

func (expiredShopify) GetDiscount(_ context.Context, id string) (*shopify.Discount, error) {
	return &shopify.Discount{ID: id, Status: "EXPIRED"}, nil
}

type remoteShopify interface {
	handlers.WebhookRegistrar
	service.RemoteDiscounts
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	return newTestServerWith(t, offlineShopify{})
}

func newTestServerWith(t *testing.T, remote remoteShopify) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	coupons := service.NewCouponService(store, store)
	sync := service.NewSyncService(store, coupons, remote, nil, nil)
	srv := httptest.NewServer(NewRouter(Deps{
		Coupons:    coupons,
		Generator:  service.NewGenerator(store, nil),
		Sync:       sync,
		Shopify:    remote,
		Reconciler: webhook.NewReconciler(testSecret, store, coupons, sync, remote, nil),
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateThenRedeemTwice(t *testing.T) {
	srv, store := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/api/coupons/generate", map[string]int{"count": 1}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, 1, body["count"])
	require.EqualValues(t, 1, body["totalInDatabase"])
	codes := body["codes"].([]any)
	require.Len(t, codes, 1)
	code := codes[0].(string)
	require.True(t, models.IsValidCode(code))

	redeem := map[string]string{"code": code, "employeeCode": "EMP1", "storeLocation": "Adyar"}
	status, body = call(t, srv, http.MethodPost, "/api/coupons/validate", redeem, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	details := body["couponDetails"].(map[string]any)
	require.Equal(t, "used", details["status"])

	status, body = call(t, srv, http.MethodPost, "/api/coupons/validate", redeem, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["success"])
	require.Contains(t, body["message"], "already been used")

	c, err := store.GetByCode(context.Background(), code)
	require.NoError(t, err)
	require.Equal(t, models.StatusUsed, c.Status)
	require.Equal(t, "EMP1", c.EmployeeCode)
	require.Equal(t, "Adyar", c.StoreLocation)
}

func TestValidateRejectsBadInput(t *testing.T) {
	srv, store := newTestServer(t)
	store.Put(models.Coupon{Code: "ABC123", Status: models.StatusActive})

	status, _ := call(t, srv, http.MethodPost, "/api/coupons/validate", map[string]string{"code": "ABC123"}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/coupons/validate",
		map[string]string{"code": "ABC123", "employeeCode": "EMP1", "storeLocation": "Mumbai"}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/coupons/validate",
		map[string]string{"code": "ZZZ999", "employeeCode": "EMP1", "storeLocation": "adyar"}, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, srv, http.MethodPost, "/api/coupons/validate", []byte(`{`), nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestGenerateBounds(t *testing.T) {
	srv, store := newTestServer(t)

	status, _ := call(t, srv, http.MethodPost, "/api/coupons/generate", map[string]int{"count": 0}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, srv, http.MethodPost, "/api/coupons/generate", map[string]int{"count": models.MaxCoupons + 1}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	for i := 0; i < models.MaxCoupons-1; i++ {
		store.Put(models.Coupon{Code: fmt.Sprintf("F%05d", i), Status: models.StatusActive})
	}
	status, body := call(t, srv, http.MethodPost, "/api/coupons/generate", map[string]int{"count": 2}, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["message"], "only 1")
}

func TestScratchTwice(t *testing.T) {
	srv, store := newTestServer(t)
	store.Put(models.Coupon{Code: "QWE456", Status: models.StatusActive})

	status, body := call(t, srv, http.MethodPost, "/api/coupons/scratch", map[string]string{"code": "qwe456"}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	first, _ := store.GetByCode(context.Background(), "QWE456")
	require.NotNil(t, first.ScratchedDate)

	status, body = call(t, srv, http.MethodPost, "/api/coupons/scratch", map[string]string{"code": "QWE456"}, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["success"])
	second, _ := store.GetByCode(context.Background(), "QWE456")
	require.Equal(t, *first.ScratchedDate, *second.ScratchedDate)

	status, _ = call(t, srv, http.MethodPost, "/api/coupons/scratch", map[string]string{"code": "NOP000"}, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestListAndStats(t *testing.T) {
	srv, store := newTestServer(t)
	store.Put(models.Coupon{Code: "AAA111", Status: models.StatusActive})
	store.Put(models.Coupon{Code: "BBB222", Status: models.StatusUsed, StoreLocation: "Porur"})

	status, body := call(t, srv, http.MethodGet, "/api/coupons?status=used", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["coupons"], 1)

	status, body = call(t, srv, http.MethodGet, "/api/coupons?code=aaa111", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["coupons"], 1)

	status, _ = call(t, srv, http.MethodGet, "/api/coupons?status=lost", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, srv, http.MethodGet, "/api/coupons/stats", nil, nil)
	require.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]any)
	require.EqualValues(t, 2, stats["total"])
}

func TestWebhooks(t *testing.T) {
	srv, store := newTestServer(t)
	store.Put(models.Coupon{Code: "ABC123", Status: models.StatusActive, ShopifyDiscountID: "gid://shopify/DiscountCodeNode/1", ShopifySynced: true, ShopifyStatus: models.ShopifyActive})

	update := []byte(`{"admin_graphql_api_id":"gid://shopify/DiscountCodeNode/1","title":"Coupon Discount ABC123","status":"EXPIRED"}`)

	status, _ := call(t, srv, http.MethodPost, "/api/webhooks/shopify", update, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/webhooks/shopify", update, map[string]string{
		"X-Shopify-Topic":       "discounts/update",
		"X-Shopify-Hmac-Sha256": webhook.Sign(update, "wrong"),
	})
	require.Equal(t, http.StatusUnauthorized, status)
	c, _ := store.GetByCode(context.Background(), "ABC123")
	require.Equal(t, models.StatusActive, c.Status)

	status, body := call(t, srv, http.MethodPost, "/api/webhooks/shopify", update, map[string]string{
		"X-Shopify-Topic":       "discounts/update",
		"X-Shopify-Hmac-Sha256": webhook.Sign(update, testSecret),
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, webhook.ActionDeactivated, body["action"])
	c, _ = store.GetByCode(context.Background(), "ABC123")
	require.Equal(t, models.StatusInactive, c.Status)

	order := []byte(`{"id":5,"name":"#1005","discount_codes":[{"code":"NOP000"}]}`)
	status, body = call(t, srv, http.MethodPost, "/api/webhooks/shopify-orders", order, map[string]string{
		"X-Shopify-Topic":       "orders/paid",
		"X-Shopify-Hmac-Sha256": webhook.Sign(order, testSecret),
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	require.Equal(t, false, results[0].(map[string]any)["success"])

	bad := []byte(`{"name":"#1"}`)
	status, _ = call(t, srv, http.MethodPost, "/api/webhooks/shopify-orders", bad, map[string]string{
		"X-Shopify-Topic":       "orders/create",
		"X-Shopify-Hmac-Sha256": webhook.Sign(bad, testSecret),
	})
	require.Equal(t, http.StatusBadRequest, status)

	other := []byte(`{}`)
	status, body = call(t, srv, http.MethodPost, "/api/webhooks/shopify", other, map[string]string{
		"X-Shopify-Topic":       "products/create",
		"X-Shopify-Hmac-Sha256": webhook.Sign(other, testSecret),
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["handled"])
}

func TestShopifyAdminRequiresConfiguration(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := call(t, srv, http.MethodPost, "/api/shopify/sync", map[string]bool{"syncAll": true}, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = call(t, srv, http.MethodPost, "/api/shopify/sync", map[string]string{}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPost, "/api/shopify/sync-status", map[string]string{"action": "bogus"}, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSyncStatusActions(t *testing.T) {
	const discountID = "gid://shopify/DiscountCodeNode/1"
	synced := models.Coupon{
		Code:              "ABC123",
		Status:            models.StatusActive,
		ShopifyDiscountID: discountID,
		ShopifySynced:     true,
		ShopifyStatus:     models.ShopifyActive,
	}

	t.Run("sync-one", func(t *testing.T) {
		srv, store := newTestServerWith(t, expiredShopify{})
		store.Put(synced)

		status, body := call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "sync-one", "couponCode": "abc123"}, nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["success"])
		result := body["result"].(map[string]any)
		require.Equal(t, true, result["deactivated"])
		require.Equal(t, string(models.ShopifyDisabled), result["shopifyStatus"])

		c, err := store.GetByCode(context.Background(), "ABC123")
		require.NoError(t, err)
		require.Equal(t, models.StatusInactive, c.Status)
		require.Equal(t, models.ShopifyDisabled, c.ShopifyStatus)

		status, _ = call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "sync-one"}, nil)
		require.Equal(t, http.StatusBadRequest, status)

		status, _ = call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "sync-one", "couponCode": "NOP000"}, nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("sync-all", func(t *testing.T) {
		srv, store := newTestServerWith(t, expiredShopify{})
		store.Put(synced)
		store.Put(models.Coupon{Code: "LOC001", Status: models.StatusActive})

		status, body := call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "sync-all"}, nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["success"])
		require.EqualValues(t, 1, body["total"])
		require.EqualValues(t, 1, body["updated"])
		require.EqualValues(t, 1, body["deactivated"])
		require.EqualValues(t, 0, body["failed"])

		c, err := store.GetByCode(context.Background(), "ABC123")
		require.NoError(t, err)
		require.Equal(t, models.StatusInactive, c.Status)
		local, err := store.GetByCode(context.Background(), "LOC001")
		require.NoError(t, err)
		require.Equal(t, models.StatusActive, local.Status)
	})

	t.Run("aliases", func(t *testing.T) {
		srv, store := newTestServerWith(t, expiredShopify{})
		store.Put(synced)

		status, body := call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "all"}, nil)
		require.Equal(t, http.StatusOK, status)
		require.EqualValues(t, 1, body["total"])

		status, body = call(t, srv, http.MethodPost, "/api/shopify/sync-status",
			map[string]string{"action": "single", "couponCode": "ABC123"}, nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, true, body["success"])
	})
}
