package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

// WebhookRegistrar is the Shopify client surface used for admin operations.
type WebhookRegistrar interface {
	Configured() bool
	RegisterWebhooks(ctx context.Context, baseURL string) ([]shopify.WebhookRegistration, error)
}

type SyncRequest struct {
	SyncAll bool   `json:"syncAll"`
	Code    string `json:"code"`
}

// Sync-status actions. "all" and "single" are accepted as aliases.
const (
	ActionSyncOne = "sync-one"
	ActionSyncAll = "sync-all"
)

type SyncStatusRequest struct {
	// Action is "sync-one" or "sync-all"; empty picks by whether CouponCode is set.
	Action     string `json:"action"`
	CouponCode string `json:"couponCode"`
}

func syncStatusAction(action, code string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionSyncOne, "single":
		return ActionSyncOne, true
	case ActionSyncAll, "all":
		return ActionSyncAll, true
	case "":
		if strings.TrimSpace(code) != "" {
			return ActionSyncOne, true
		}
		return ActionSyncAll, true
	}
	return "", false
}

type ShopifyHandler struct {
	sync    *service.SyncService
	shopify WebhookRegistrar
	baseURL string
}

func NewShopifyHandler(sync *service.SyncService, client WebhookRegistrar, baseURL string) *ShopifyHandler {
	return &ShopifyHandler{sync: sync, shopify: client, baseURL: baseURL}
}

func (h *ShopifyHandler) requireConfigured(w http.ResponseWriter) bool {
	if h.shopify == nil || !h.shopify.Configured() {
		writeFailure(w, http.StatusServiceUnavailable, shopify.Describe(shopify.ErrNotConfigured))
		return false
	}
	return true
}

// Sync handles POST /api/shopify/sync: {syncAll:true} or {code}.
func (h *ShopifyHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.SyncAll && strings.TrimSpace(req.Code) == "" {
		writeFailure(w, http.StatusBadRequest, "either syncAll or code is required")
		return
	}
	if !h.requireConfigured(w) {
		return
	}

	if req.SyncAll {
		summary, err := h.sync.SyncAllPending(r.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			writeInternal(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   summary.Failed == 0,
			"total":     summary.Total,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"results":   summary.Results,
		})
		return
	}

	item, err := h.sync.SyncOne(r.Context(), req.Code)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "coupon not found")
		return
	case errors.Is(err, service.ErrNotActive):
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "coupon is not active", "result": item})
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": item.Success,
		"message": item.Message,
		"result":  item,
	})
}

// SyncStatus handles POST /api/shopify/sync-status: pulls remote discount
// status back into local coupons.
func (h *ShopifyHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	var req SyncStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	action, ok := syncStatusAction(req.Action, req.CouponCode)
	if !ok {
		writeFailure(w, http.StatusBadRequest, `action must be "sync-one" or "sync-all"`)
		return
	}
	if action == ActionSyncOne && strings.TrimSpace(req.CouponCode) == "" {
		writeFailure(w, http.StatusBadRequest, "couponCode is required")
		return
	}
	if !h.requireConfigured(w) {
		return
	}

	if action == ActionSyncOne {
		item, err := h.sync.ReconcileOne(r.Context(), req.CouponCode)
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeFailure(w, http.StatusNotFound, "coupon not found")
			return
		case err != nil:
			writeInternal(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": item.Success,
			"message": item.Message,
			"result":  item,
		})
		return
	}

	summary, err := h.sync.ReconcileAll(r.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     summary.Failed == 0,
		"total":       summary.Total,
		"updated":     summary.Updated,
		"deactivated": summary.Deactivated,
		"failed":      summary.Failed,
		"results":     summary.Results,
	})
}

// RegisterWebhooks handles POST /api/shopify/webhooks/register
func (h *ShopifyHandler) RegisterWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.baseURL == "" {
		writeFailure(w, http.StatusBadRequest, "app.base_url is not configured")
		return
	}
	if !h.requireConfigured(w) {
		return
	}
	regs, err := h.shopify.RegisterWebhooks(r.Context(), h.baseURL)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	failed := 0
	for _, reg := range regs {
		if reg.Error != "" {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       failed == 0,
		"registrations": regs,
	})
}
