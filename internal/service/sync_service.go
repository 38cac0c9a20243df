package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/cache"
	"github.com/Cheertaboi/scratch-coupon-service/internal/concurrency"
	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

// RemoteDiscounts is the Shopify surface the sync adapter drives.
type RemoteDiscounts interface {
	CreateDiscount(ctx context.Context, code string) (string, error)
	DisableDiscount(ctx context.Context, discountID string) error
	GetDiscount(ctx context.Context, discountID string) (*shopify.Discount, error)
}

type SyncItemResult struct {
	Code       string           `json:"code"`
	Success    bool             `json:"success"`
	DiscountID string           `json:"discountId,omitempty"`
	Message    string           `json:"message,omitempty"`
	Category   shopify.Category `json:"errorCategory,omitempty"`
}

type SyncSummary struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []SyncItemResult `json:"results"`
}

type ReconcileItem struct {
	StatusChange
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ReconcileSummary struct {
	Total       int             `json:"total"`
	Updated     int             `json:"updated"`
	Deactivated int             `json:"deactivated"`
	Failed      int             `json:"failed"`
	Results     []ReconcileItem `json:"results"`
}

// SyncService mirrors local coupons as Shopify discounts and pulls remote
// status back. Batch loops run sequentially behind the pacer.
type SyncService struct {
	repo    CouponRepo
	coupons *CouponService
	remote  RemoteDiscounts
	pacer   *concurrency.Pacer
	codes   cache.CodeCache
}

func NewSyncService(repo CouponRepo, coupons *CouponService, remote RemoteDiscounts, pacer *concurrency.Pacer, codes cache.CodeCache) *SyncService {
	if pacer == nil {
		pacer = concurrency.NewPacer(0)
	}
	return &SyncService{
		repo:    repo,
		coupons: coupons,
		remote:  remote,
		pacer:   pacer,
		codes:   codes,
	}
}

// SyncAllPending creates a remote discount for every active coupon that has none.
// A failing item is recorded and the batch moves on.
func (s *SyncService) SyncAllPending(ctx context.Context) (SyncSummary, error) {
	pending, err := s.repo.ListPendingSync(ctx)
	if err != nil {
		return SyncSummary{}, fmt.Errorf("list pending sync: %w", err)
	}
	summary := SyncSummary{Total: len(pending), Results: make([]SyncItemResult, 0, len(pending))}

	err = concurrency.ForEach(ctx, s.pacer, pending, func(ctx context.Context, _ int, c models.Coupon) {
		r := s.syncCoupon(ctx, c.Code)
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, r)
	})
	log.Infof("shopify sync finished: total=%d succeeded=%d failed=%d", summary.Total, summary.Succeeded, summary.Failed)
	return summary, err
}

func (s *SyncService) SyncOne(ctx context.Context, code string) (SyncItemResult, error) {
	c, err := s.coupons.Get(ctx, code)
	if err != nil {
		return SyncItemResult{Code: models.NormalizeCode(code)}, err
	}
	if c.HasRemoteDiscount() {
		return SyncItemResult{Code: c.Code, Success: true, DiscountID: c.ShopifyDiscountID, Message: "already synced"}, nil
	}
	if c.Status != models.StatusActive {
		return SyncItemResult{Code: c.Code, Message: "coupon is not active"}, ErrNotActive
	}
	return s.syncCoupon(ctx, c.Code), nil
}

func (s *SyncService) syncCoupon(ctx context.Context, code string) SyncItemResult {
	res := SyncItemResult{Code: code}
	id, err := s.remote.CreateDiscount(ctx, code)
	if err != nil {
		res.Category = shopify.Categorize(err)
		res.Message = shopify.Describe(err)
		log.WithError(err).WithField("code", code).Warn("shopify discount create failed")
		return res
	}
	res.DiscountID = id
	if _, err := s.repo.LinkDiscount(ctx, code, id, models.ShopifyActive); err != nil {
		res.Message = "discount created but linking failed: " + err.Error()
		log.WithError(err).WithField("code", code).Error("link shopify discount failed")
		return res
	}
	if s.codes != nil {
		s.codes.Set(ctx, id, code)
	}
	res.Success = true
	res.Message = "synced"
	return res
}

// DisableRemote disables the linked discount after a redemption. Failures are
// returned for logging only; the local redemption stands.
func (s *SyncService) DisableRemote(ctx context.Context, c *models.Coupon) error {
	if !c.HasRemoteDiscount() {
		return nil
	}
	if err := s.remote.DisableDiscount(ctx, c.ShopifyDiscountID); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"code":        c.Code,
			"discount_id": c.ShopifyDiscountID,
			"category":    shopify.Categorize(err),
		}).Warn("shopify discount disable failed")
		return err
	}
	if err := s.repo.SetShopifyStatus(ctx, c.Code, models.ShopifyDisabled); err != nil {
		log.WithError(err).WithField("code", c.Code).Error("record disabled shopify status failed")
	}
	return nil
}

// ReconcileOne pulls the remote status of one synced coupon and folds it in.
func (s *SyncService) ReconcileOne(ctx context.Context, code string) (ReconcileItem, error) {
	c, err := s.coupons.Get(ctx, code)
	if err != nil {
		return ReconcileItem{StatusChange: StatusChange{Code: models.NormalizeCode(code)}}, err
	}
	return s.reconcile(ctx, c), nil
}

func (s *SyncService) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	synced, err := s.repo.ListSynced(ctx)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("list synced: %w", err)
	}
	summary := ReconcileSummary{Total: len(synced), Results: make([]ReconcileItem, 0, len(synced))}
	err = concurrency.ForEach(ctx, s.pacer, synced, func(ctx context.Context, _ int, c models.Coupon) {
		item := s.reconcile(ctx, &c)
		switch {
		case !item.Success:
			summary.Failed++
		case item.StatusUpdated || item.Deactivated:
			summary.Updated++
		}
		if item.Deactivated {
			summary.Deactivated++
		}
		summary.Results = append(summary.Results, item)
	})
	log.Infof("shopify status reconcile finished: total=%d updated=%d deactivated=%d failed=%d",
		summary.Total, summary.Updated, summary.Deactivated, summary.Failed)
	return summary, err
}

func (s *SyncService) reconcile(ctx context.Context, c *models.Coupon) ReconcileItem {
	item := ReconcileItem{StatusChange: StatusChange{Code: c.Code, PreviousStatus: c.ShopifyStatus}}
	if !c.HasRemoteDiscount() {
		item.Message = "coupon is not synced with shopify"
		return item
	}
	d, err := s.remote.GetDiscount(ctx, c.ShopifyDiscountID)
	if err != nil {
		item.Message = shopify.Describe(err)
		log.WithError(err).WithField("code", c.Code).Warn("shopify discount lookup failed")
		return item
	}
	status := models.ShopifyDeleted
	if d != nil {
		status = shopify.MapStatus(d.Status)
	}
	change, err := s.coupons.ApplyRemoteStatus(ctx, c, status)
	item.StatusChange = change
	if err != nil {
		item.Message = err.Error()
		log.WithError(err).WithField("code", c.Code).Error("apply remote status failed")
		return item
	}
	item.Success = true
	return item
}
