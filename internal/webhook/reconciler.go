package webhook

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"

	"github.com/Cheertaboi/scratch-coupon-service/internal/cache"
	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
	"github.com/Cheertaboi/scratch-coupon-service/internal/service"
	"github.com/Cheertaboi/scratch-coupon-service/internal/shopify"
)

// titlePattern extracts the coupon code from discounts created by this service.
// It depends on the "Coupon Discount " title prefix and breaks if the title is
// edited on the Shopify side.
var titlePattern = regexp.MustCompile(`Coupon Discount ([A-Z]{3}\d{3})`)

// Code sources, in the order they are tried.
const (
	SourcePayload    = "payload"
	SourceTitle      = "title"
	SourceLocalLink  = "local_link"
	SourceCache      = "cache"
	SourceRemoteLook = "remote_lookup"
)

const (
	ActionLinked        = "linked"
	ActionStatusUpdated = "status_updated"
	ActionDeactivated   = "deactivated"
	ActionNoChange      = "no_change"
	ActionIgnored       = "ignored"
	ActionOrder         = "order_processed"
	ActionNotHandled    = "not_handled"
)

type CouponLookup interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetByDiscountID(ctx context.Context, discountID string) (*models.Coupon, error)
	LinkDiscount(ctx context.Context, code, discountID string, status models.ShopifyStatus) (bool, error)
}

type Lifecycle interface {
	Redeem(ctx context.Context, code, employeeCode, storeLocation string) (service.RedeemResult, error)
	ApplyRemoteStatus(ctx context.Context, c *models.Coupon, status models.ShopifyStatus) (service.StatusChange, error)
}

type RemoteDisabler interface {
	DisableRemote(ctx context.Context, c *models.Coupon) error
}

type DiscountReader interface {
	GetDiscount(ctx context.Context, discountID string) (*shopify.Discount, error)
}

type Result struct {
	Topic      Topic                    `json:"topic"`
	Handled    bool                     `json:"handled"`
	Action     string                   `json:"action"`
	Message    string                   `json:"message"`
	Code       string                   `json:"couponCode,omitempty"`
	CodeSource string                   `json:"codeSource,omitempty"`
	Change     *service.StatusChange    `json:"change,omitempty"`
	Results    []models.OrderRedemption `json:"results,omitempty"`
}

// Reconciler folds Shopify webhook deliveries into local coupon state.
type Reconciler struct {
	secret    string
	repo      CouponLookup
	lifecycle Lifecycle
	disabler  RemoteDisabler
	remote    DiscountReader
	codes     cache.CodeCache
}

func NewReconciler(secret string, repo CouponLookup, lifecycle Lifecycle, disabler RemoteDisabler, remote DiscountReader, codes cache.CodeCache) *Reconciler {
	if secret == "" {
		log.Warn("webhook: no shared secret configured, signatures are NOT verified")
	}
	if codes == nil {
		codes = cache.NewCouponCache(0)
	}
	return &Reconciler{
		secret:    secret,
		repo:      repo,
		lifecycle: lifecycle,
		disabler:  disabler,
		remote:    remote,
		codes:     codes,
	}
}

// HandleDiscount processes a discounts/* delivery.
func (r *Reconciler) HandleDiscount(ctx context.Context, topic Topic, body []byte, signature string) (Result, error) {
	if err := Verify(body, r.secret, signature); err != nil {
		return Result{Topic: topic}, err
	}
	if !topic.IsDiscount() {
		return notHandled(topic), nil
	}
	ev, err := DecodeDiscount(body)
	if err != nil {
		return Result{Topic: topic}, err
	}

	res := Result{Topic: topic, Handled: true}
	code, source, linked := r.resolveCode(ctx, ev)
	if code == "" {
		res.Action = ActionIgnored
		res.Message = "no coupon code could be resolved for discount " + ev.DiscountID
		log.WithField("discount_id", ev.DiscountID).Info("webhook: discount without resolvable coupon code")
		return res, nil
	}
	res.Code, res.CodeSource = code, source

	c := linked
	if c == nil || c.Code != code {
		c, err = r.repo.GetByCode(ctx, code)
		if err != nil {
			return res, fmt.Errorf("webhook: load coupon %s: %w", code, err)
		}
	}
	if c == nil {
		res.Action = ActionIgnored
		res.Message = "coupon " + code + " not found locally"
		return res, nil
	}

	switch topic {
	case TopicDiscountCreate:
		return r.discountCreated(ctx, res, c, ev)
	case TopicDiscountUpdate:
		if ev.Status == "" {
			res.Action = ActionNoChange
			res.Message = "payload carries no discount status"
			return res, nil
		}
		return r.applyStatus(ctx, res, c, shopify.MapStatus(ev.Status))
	default:
		return r.applyStatus(ctx, res, c, models.ShopifyDeleted)
	}
}

func (r *Reconciler) discountCreated(ctx context.Context, res Result, c *models.Coupon, ev DiscountEvent) (Result, error) {
	r.codes.Set(ctx, ev.DiscountID, c.Code)
	if c.HasRemoteDiscount() {
		res.Action = ActionNoChange
		res.Message = "coupon already linked to " + c.ShopifyDiscountID
		return res, nil
	}
	status := models.ShopifyActive
	if ev.Status != "" {
		status = shopify.MapStatus(ev.Status)
	}
	ok, err := r.repo.LinkDiscount(ctx, c.Code, ev.DiscountID, status)
	if err != nil {
		return res, fmt.Errorf("webhook: link discount %s: %w", c.Code, err)
	}
	if !ok {
		res.Action = ActionNoChange
		res.Message = "coupon was linked concurrently"
		return res, nil
	}
	res.Action = ActionLinked
	res.Message = "coupon linked to " + ev.DiscountID
	return res, nil
}

func (r *Reconciler) applyStatus(ctx context.Context, res Result, c *models.Coupon, status models.ShopifyStatus) (Result, error) {
	change, err := r.lifecycle.ApplyRemoteStatus(ctx, c, status)
	if err != nil {
		return res, fmt.Errorf("webhook: apply status %s: %w", c.Code, err)
	}
	res.Change = &change
	switch {
	case change.Deactivated:
		res.Action = ActionDeactivated
		res.Message = fmt.Sprintf("coupon deactivated, shopify status %s", status)
	case change.StatusUpdated:
		res.Action = ActionStatusUpdated
		res.Message = fmt.Sprintf("shopify status set to %s", status)
	default:
		res.Action = ActionNoChange
		res.Message = "statuses already agree"
	}
	return res, nil
}

// resolveCode walks the fallback chain and stops at the first hit. The coupon
// is returned when the local link lookup found it.
func (r *Reconciler) resolveCode(ctx context.Context, ev DiscountEvent) (string, string, *models.Coupon) {
	if code := models.NormalizeCode(ev.Code); code != "" {
		return code, SourcePayload, nil
	}
	if m := titlePattern.FindStringSubmatch(ev.Title); len(m) == 2 {
		return m[1], SourceTitle, nil
	}
	c, err := r.repo.GetByDiscountID(ctx, ev.DiscountID)
	if err != nil {
		log.WithError(err).WithField("discount_id", ev.DiscountID).Warn("webhook: local discount lookup failed")
	} else if c != nil {
		return c.Code, SourceLocalLink, c
	}
	if code, ok := r.codes.Get(ctx, ev.DiscountID); ok {
		return code, SourceCache, nil
	}
	if r.remote == nil {
		return "", "", nil
	}
	d, err := r.remote.GetDiscount(ctx, ev.DiscountID)
	if err != nil {
		log.WithError(err).WithField("discount_id", ev.DiscountID).Warn("webhook: remote discount lookup failed")
		return "", "", nil
	}
	if d == nil || len(d.Codes) == 0 {
		return "", "", nil
	}
	code := models.NormalizeCode(d.Codes[0])
	r.codes.Set(ctx, ev.DiscountID, code)
	return code, SourceRemoteLook, nil
}

// HandleOrder processes an orders/* delivery. Per-code failures are reported
// in the result and never fail the delivery.
func (r *Reconciler) HandleOrder(ctx context.Context, topic Topic, body []byte, signature string) (Result, error) {
	if err := Verify(body, r.secret, signature); err != nil {
		return Result{Topic: topic}, err
	}
	if !topic.IsOrder() {
		return notHandled(topic), nil
	}
	ev, err := DecodeOrder(body)
	if err != nil {
		return Result{Topic: topic}, err
	}

	res := Result{Topic: topic, Handled: true, Action: ActionIgnored}
	if topic == TopicOrderUpdated && !ev.IsPaid() {
		res.Message = "order is not paid"
		return res, nil
	}
	if len(ev.Codes) == 0 {
		res.Message = "order has no discount codes"
		return res, nil
	}

	res.Action = ActionOrder
	res.Results = make([]models.OrderRedemption, 0, len(ev.Codes))
	redeemed := 0
	for _, code := range ev.Codes {
		item := r.redeemForOrder(ctx, ev, code)
		if item.Success {
			redeemed++
		}
		res.Results = append(res.Results, item)
	}
	res.Message = fmt.Sprintf("%d of %d coupons redeemed for order %s", redeemed, len(ev.Codes), ev.Reference())
	return res, nil
}

func (r *Reconciler) redeemForOrder(ctx context.Context, ev OrderEvent, code string) models.OrderRedemption {
	item := models.OrderRedemption{Code: code}
	c, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		log.WithError(err).WithField("code", code).Error("webhook: load coupon for order failed")
		item.Message = "failed to load coupon"
		return item
	}
	if c == nil {
		item.Message = "coupon not found"
		return item
	}
	if c.Status == models.StatusUsed {
		item.Message = "coupon already used"
		return item
	}

	res, err := r.lifecycle.Redeem(ctx, code, models.OrderEmployeeCode(ev.Reference()), models.LocationOnline)
	switch {
	case errors.Is(err, service.ErrAlreadyUsed):
		item.Message = "coupon already used"
		return item
	case errors.Is(err, service.ErrNotActive):
		item.Message = "coupon is not active"
		return item
	case errors.Is(err, service.ErrNotFound):
		item.Message = "coupon not found"
		return item
	case err != nil:
		log.WithError(err).WithField("code", code).Error("webhook: order redemption failed")
		item.Message = "redemption failed"
		return item
	}

	item.Success = true
	item.Message = "coupon redeemed by order " + ev.Reference()
	if res.DisableRemote && r.disabler != nil {
		if err := r.disabler.DisableRemote(ctx, res.Coupon); err != nil {
			item.ShopifyDisableFailed = shopify.Describe(err)
		} else {
			item.ShopifyDisabled = true
		}
	}
	return item
}

func notHandled(topic Topic) Result {
	return Result{
		Topic:   topic,
		Handled: false,
		Action:  ActionNotHandled,
		Message: fmt.Sprintf("topic %q not handled", topic),
	}
}
