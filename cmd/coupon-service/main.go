package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/api"
	"github.com/Cheertaboi/scratch-coupon-service/internal/api/middleware"
	"github.com/Cheertaboi/scratch-coupon-service/internal/cache"
	"github.com/Cheertaboi/scratch-coupon-service/internal/concurrency"
	"github.com/Cheertaboi/scratch-coupon-service/internal/config"
	"github.com/Cheertaboi/scratch-coupon-service/internal/logging"
	"github.com/Cheertaboi/scratch-coupon-service/internal/repository"
	"github.com/Cheertaboi/scratch-coupon-service/internal/repository/memory"
	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
	"github.com/Cheertaboi/scratch-coupon-service/internal/webhook"
	"github.com/Cheertaboi/scratch-coupon-service/pkg/db"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logCloser.Close()

	ctx := context.Background()

	// storage
	var (
		repo  service.CouponRepo
		usage service.UsageRepo
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := memory.New()
		repo, usage = mem, mem
		log.Warn("using in-memory coupon store, data is lost on restart")
	default:
		var conn *sql.DB
		conn, err = db.NewPostgresConnection(cfg.Database.Postgres())
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer conn.Close()
		if err := db.EnsureSchema(ctx, conn, db.PostgresSchema); err != nil {
			log.Fatalf("db schema: %v", err)
		}
		repo, usage = repository.NewCouponRepo(conn), repository.NewUsageRepo(conn)
	}

	// discount id -> code cache
	var codes cache.CodeCache = cache.NewCouponCache(cfg.Cache.TTL)
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.URL, cfg.Cache.TTL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, falling back to in-memory discount cache")
		} else {
			defer rc.Close()
			codes = rc
		}
	}

	shopifyClient := shopify.NewClient(cfg.Shopify.Client(), nil)
	if !shopifyClient.Configured() {
		log.Warn("shopify store domain or access token missing, sync endpoints are disabled")
	}

	coupons := service.NewCouponService(repo, usage)
	sync := service.NewSyncService(repo, coupons, shopifyClient, concurrency.NewPacer(cfg.Shopify.SyncInterval), codes)
	reconciler := webhook.NewReconciler(cfg.Shopify.WebhookSecret, repo, coupons, sync, shopifyClient, codes)

	handler := api.NewRouter(api.Deps{
		Coupons:    coupons,
		Generator:  service.NewGenerator(repo, nil),
		Sync:       sync,
		Shopify:    shopifyClient,
		Reconciler: reconciler,
		BaseURL:    cfg.App.BaseURL,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", handler)

	// no WriteTimeout: a paced batch sync request runs for minutes
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Infof("starting coupon-service on %s (store=%s)", cfg.Server.Addr, cfg.Database.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %s", err)
	}

	<-idleConnsClosed
	log.Info("server stopped")
}
