package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/webhook"
)

const (
	TopicHeader     = "X-Shopify-Topic"
	SignatureHeader = "X-Shopify-Hmac-Sha256"
	maxWebhookBody  = 1 << 20
)

type webhookFunc func(ctx context.Context, topic webhook.Topic, body []byte, signature string) (webhook.Result, error)

type webhookResponse struct {
	Success bool `json:"success"`
	webhook.Result
}

type WebhookHandler struct {
	reconciler *webhook.Reconciler
}

func NewWebhookHandler(reconciler *webhook.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Discounts handles POST /api/webhooks/shopify
func (h *WebhookHandler) Discounts(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.reconciler.HandleDiscount)
}

// Orders handles POST /api/webhooks/shopify-orders
func (h *WebhookHandler) Orders(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.reconciler.HandleOrder)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, fn webhookFunc) {
	topic := strings.TrimSpace(r.Header.Get(TopicHeader))
	if topic == "" {
		writeFailure(w, http.StatusBadRequest, TopicHeader+" header is required")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "could not read request body")
		return
	}

	entry := log.WithFields(log.Fields{"topic": topic, "shop": r.Header.Get("X-Shopify-Shop-Domain")})
	res, err := fn(r.Context(), webhook.Topic(topic), body, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, webhook.ErrUnauthorized):
		entry.Warn("webhook rejected: invalid signature")
		writeFailure(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	case errors.Is(err, webhook.ErrInvalidPayload):
		entry.WithError(err).Warn("webhook rejected: invalid payload")
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}

	entry.WithFields(log.Fields{"action": res.Action, "code": res.Code}).Info(res.Message)
	writeJSON(w, http.StatusOK, webhookResponse{Success: true, Result: res})
}
