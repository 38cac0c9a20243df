package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

// --- Request / Response DTOs ---

type GenerateRequest struct {
	Count int `json:"count"`
}

type ScratchRequest struct {
	Code string `json:"code"`
}

type ValidateRequest struct {
	Code          string `json:"code"`
	EmployeeCode  string `json:"employeeCode"`
	StoreLocation string `json:"storeLocation"`
}

type ValidateResponse struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	CouponDetails   *models.Coupon `json:"couponDetails,omitempty"`
	ShopifyDisabled bool           `json:"shopifyDisabled,omitempty"`
	ShopifyError    string         `json:"shopifyError,omitempty"`
}

// --- Handler struct & constructor ---

type CouponHandler struct {
	coupons   *service.CouponService
	generator *service.Generator
	sync      *service.SyncService
}

func NewCouponHandler(coupons *service.CouponService, generator *service.Generator, sync *service.SyncService) *CouponHandler {
	return &CouponHandler{
		coupons:   coupons,
		generator: generator,
		sync:      sync,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{"success": false, "message": message})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	writeFailure(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// --- Handlers ---

// ListCoupons handles GET /api/coupons?code=&status=&limit=
func (h *CouponHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.CouponFilter{
		Code:   q.Get("code"),
		Status: models.CouponStatus(strings.ToLower(q.Get("status"))),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	coupons, err := h.coupons.List(r.Context(), filter)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(coupons),
		"coupons": coupons,
	})
}

// Stats handles GET /api/coupons/stats
func (h *CouponHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coupons.Stats(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

// GenerateCoupons handles POST /api/coupons/generate
func (h *CouponHandler) GenerateCoupons(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Count < 1 || req.Count > models.MaxCoupons {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", models.MaxCoupons))
		return
	}
	remaining, err := h.coupons.Remaining(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if req.Count > remaining {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf(
			"cannot generate %d coupons: only %d of %d remaining", req.Count, remaining, models.MaxCoupons))
		return
	}

	res, err := h.generator.Generate(r.Context(), req.Count)
	switch {
	case errors.Is(err, service.ErrCeilingReached), errors.Is(err, service.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}

	message := fmt.Sprintf("generated %d coupons", res.Created)
	if res.Created < res.Requested {
		message = fmt.Sprintf("generated %d of %d requested coupons", res.Created, res.Requested)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"message":         message,
		"requested":       res.Requested,
		"count":           res.Created,
		"codes":           res.Codes,
		"totalInDatabase": res.TotalInDatabase,
	})
}

// ScratchCoupon handles POST /api/coupons/scratch
func (h *CouponHandler) ScratchCoupon(w http.ResponseWriter, r *http.Request) {
	var req ScratchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeFailure(w, http.StatusBadRequest, "code is required")
		return
	}

	c, err := h.coupons.Scratch(r.Context(), req.Code)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "coupon not found")
		return
	case errors.Is(err, service.ErrAlreadyScratched):
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "coupon already scratched",
			"coupon":  c,
		})
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "coupon revealed",
		"coupon":  c,
	})
}

// ValidateCoupon handles POST /api/coupons/validate: an in-store redemption.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	req.EmployeeCode = strings.TrimSpace(req.EmployeeCode)
	if strings.TrimSpace(req.Code) == "" || req.EmployeeCode == "" || strings.TrimSpace(req.StoreLocation) == "" {
		writeFailure(w, http.StatusBadRequest, "code, employeeCode and storeLocation are required")
		return
	}
	code := models.NormalizeCode(req.Code)
	if !models.IsValidCode(code) {
		writeFailure(w, http.StatusBadRequest, "coupon code must be 3 letters followed by 3 digits")
		return
	}
	location, ok := models.CanonicalStoreLocation(req.StoreLocation)
	if !ok {
		writeFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid store location %q", req.StoreLocation))
		return
	}

	res, err := h.coupons.Redeem(r.Context(), code, req.EmployeeCode, location)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "coupon not found")
		return
	case errors.Is(err, service.ErrAlreadyUsed):
		writeJSON(w, http.StatusOK, ValidateResponse{Message: "coupon has already been used", CouponDetails: res.Coupon})
		return
	case errors.Is(err, service.ErrNotActive):
		writeJSON(w, http.StatusOK, ValidateResponse{Message: "coupon is not active", CouponDetails: res.Coupon})
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}

	resp := ValidateResponse{
		Success:       true,
		Message:       "coupon redeemed",
		CouponDetails: res.Coupon,
	}
	if res.DisableRemote && h.sync != nil {
		if err := h.sync.DisableRemote(r.Context(), res.Coupon); err != nil {
			resp.ShopifyError = shopify.Describe(err)
		} else {
			resp.ShopifyDisabled = true
			resp.CouponDetails.ShopifyStatus = models.ShopifyDisabled
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
