package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

// Deactivation reasons recorded in employee_code when remote state closes a coupon.
const (
	ReasonShopifyDisabled = "SHOPIFY_DISABLED"
	ReasonShopifyDeleted  = "SHOPIFY_DELETED"
)

// Repos required by service (use interfaces to allow mocking)
type CouponRepo interface {
	Insert(ctx context.Context, code string, createdAt time.Time) (bool, error)
	Count(ctx context.Context) (int, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByDiscountID(ctx context.Context, discountID string) (*models.Coupon, error)
	List(ctx context.Context, f models.CouponFilter) ([]models.Coupon, error)
	MarkUsed(ctx context.Context, code, employeeCode, storeLocation string, at time.Time) (bool, error)
	MarkScratched(ctx context.Context, code string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, code, reason string, at time.Time) (bool, error)
	LinkDiscount(ctx context.Context, code, discountID string, status models.ShopifyStatus) (bool, error)
	SetShopifyStatus(ctx context.Context, code string, status models.ShopifyStatus) error
	ListPendingSync(ctx context.Context) ([]models.Coupon, error)
	ListSynced(ctx context.Context) ([]models.Coupon, error)
}

type UsageRepo interface {
	Summary(ctx context.Context) (models.CouponStats, error)
}

// CouponService owns every legal state transition of a coupon.
type CouponService struct {
	repo  CouponRepo
	usage UsageRepo
	now   func() time.Time
}

func NewCouponService(repo CouponRepo, usage UsageRepo) *CouponService {
	return &CouponService{
		repo:  repo,
		usage: usage,
		now:   time.Now,
	}
}

type RedeemResult struct {
	Coupon *models.Coupon
	// DisableRemote tells the caller a Shopify discount is linked and must be disabled.
	DisableRemote bool
}

type DeactivateResult struct {
	Coupon  *models.Coupon
	Changed bool
}

// StatusChange describes how a remote status was folded into a coupon.
type StatusChange struct {
	Code           string               `json:"code"`
	PreviousStatus models.ShopifyStatus `json:"previousShopifyStatus,omitempty"`
	ShopifyStatus  models.ShopifyStatus `json:"shopifyStatus"`
	StatusUpdated  bool                 `json:"statusUpdated"`
	Deactivated    bool                 `json:"deactivated"`
}

func (s *CouponService) Get(ctx context.Context, code string) (*models.Coupon, error) {
	c, err := s.repo.GetByCode(ctx, models.NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *CouponService) List(ctx context.Context, f models.CouponFilter) ([]models.Coupon, error) {
	f.Code = models.NormalizeCode(f.Code)
	if f.Status != "" && !models.IsValidStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.repo.List(ctx, f)
}

func (s *CouponService) Stats(ctx context.Context) (models.CouponStats, error) {
	return s.usage.Summary(ctx)
}

// Remaining returns how many coupons can still be created under the ceiling.
func (s *CouponService) Remaining(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	return max(models.MaxCoupons-n, 0), nil
}

// Redeem marks an active coupon used. Store location validation is the caller's job.
func (s *CouponService) Redeem(ctx context.Context, code, employeeCode, storeLocation string) (RedeemResult, error) {
	code = models.NormalizeCode(code)
	c, err := s.Get(ctx, code)
	if err != nil {
		return RedeemResult{}, err
	}
	// Status before used_date: a local deactivation also stamps used_date and
	// must report not-active, not already-used.
	switch {
	case c.Status == models.StatusUsed:
		return RedeemResult{Coupon: c}, ErrAlreadyUsed
	case c.Status != models.StatusActive:
		return RedeemResult{Coupon: c}, ErrNotActive
	case c.UsedDate != nil:
		return RedeemResult{Coupon: c}, ErrAlreadyUsed
	}

	ok, err := s.repo.MarkUsed(ctx, code, employeeCode, storeLocation, s.now())
	if err != nil {
		return RedeemResult{}, fmt.Errorf("mark used: %w", err)
	}
	updated, err := s.Get(ctx, code)
	if err != nil {
		return RedeemResult{}, err
	}
	if !ok {
		// another request redeemed or deactivated it between the read and the update
		if updated.Status == models.StatusUsed {
			return RedeemResult{Coupon: updated}, ErrAlreadyUsed
		}
		return RedeemResult{Coupon: updated}, ErrNotActive
	}

	log.WithFields(log.Fields{
		"code":     code,
		"employee": employeeCode,
		"location": storeLocation,
	}).Info("coupon redeemed")

	return RedeemResult{Coupon: updated, DisableRemote: updated.HasRemoteDiscount()}, nil
}

func (s *CouponService) Scratch(ctx context.Context, code string) (*models.Coupon, error) {
	code = models.NormalizeCode(code)
	c, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.IsScratched {
		return c, ErrAlreadyScratched
	}
	ok, err := s.repo.MarkScratched(ctx, code, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark scratched: %w", err)
	}
	updated, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return updated, ErrAlreadyScratched
	}
	return updated, nil
}

// DeactivateLocally closes an active coupon because of remote state. It is a
// no-op with Changed=false when the coupon is no longer active.
func (s *CouponService) DeactivateLocally(ctx context.Context, code, reason string) (DeactivateResult, error) {
	code = models.NormalizeCode(code)
	c, err := s.Get(ctx, code)
	if err != nil {
		return DeactivateResult{}, err
	}
	if c.Status != models.StatusActive {
		return DeactivateResult{Coupon: c}, nil
	}
	ok, err := s.repo.Deactivate(ctx, code, reason, s.now())
	if err != nil {
		return DeactivateResult{}, fmt.Errorf("deactivate: %w", err)
	}
	updated, err := s.Get(ctx, code)
	if err != nil {
		return DeactivateResult{}, err
	}
	if ok {
		log.WithFields(log.Fields{"code": code, "reason": reason}).Info("coupon deactivated locally")
	}
	return DeactivateResult{Coupon: updated, Changed: ok}, nil
}

// ApplyRemoteStatus records the remote status and deactivates the coupon when
// the remote discount is no longer usable. A remote status never reactivates a coupon.
func (s *CouponService) ApplyRemoteStatus(ctx context.Context, c *models.Coupon, status models.ShopifyStatus) (StatusChange, error) {
	change := StatusChange{
		Code:           c.Code,
		PreviousStatus: c.ShopifyStatus,
		ShopifyStatus:  status,
	}
	if c.ShopifyStatus != status {
		if err := s.repo.SetShopifyStatus(ctx, c.Code, status); err != nil {
			return change, err
		}
		change.StatusUpdated = true
	}
	if status == models.ShopifyActive || c.Status != models.StatusActive {
		return change, nil
	}

	reason := ReasonShopifyDisabled
	if status == models.ShopifyDeleted {
		reason = ReasonShopifyDeleted
	}
	res, err := s.DeactivateLocally(ctx, c.Code, reason)
	if err != nil {
		return change, err
	}
	change.Deactivated = res.Changed
	return change, nil
}
