package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Cheertaboi/scratch-coupon-service/internal/api/handlers"
	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
	"github.com/Cheertaboi/scratch-coupon-service/internal/webhook"
)

// Deps carries everything the HTTP layer calls into.
type Deps struct {
	Coupons    *service.CouponService
	Generator  *service.Generator
	Sync       *service.SyncService
	Shopify    handlers.WebhookRegistrar
	Reconciler *webhook.Reconciler
	// BaseURL is the public address used when registering webhooks.
	BaseURL string
}

// NewRouter builds the HTTP router for the coupon-service
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	couponHandler := handlers.NewCouponHandler(deps.Coupons, deps.Generator, deps.Sync)
	shopifyHandler := handlers.NewShopifyHandler(deps.Sync, deps.Shopify, deps.BaseURL)
	webhookHandler := handlers.NewWebhookHandler(deps.Reconciler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", couponHandler.ListCoupons)
			r.Get("/stats", couponHandler.Stats)
			r.Post("/generate", couponHandler.GenerateCoupons)
			r.Post("/scratch", couponHandler.ScratchCoupon)
			r.Post("/validate", couponHandler.ValidateCoupon)
		})

		// Admin endpoints
		r.Route("/shopify", func(r chi.Router) {
			r.Post("/sync", shopifyHandler.Sync)
			r.Post("/sync-status", shopifyHandler.SyncStatus)
			r.Post("/webhooks/register", shopifyHandler.RegisterWebhooks)
		})

		r.Post(shopifyPath(shopify.DiscountWebhookPath), webhookHandler.Discounts)
		r.Post(shopifyPath(shopify.OrderWebhookPath), webhookHandler.Orders)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

// shopifyPath strips the /api prefix so callback paths can be mounted inside the /api route.
func shopifyPath(p string) string {
	return strings.TrimPrefix(p, "/api")
}
