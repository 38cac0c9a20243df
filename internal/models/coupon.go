package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CouponStatus string

const (
	StatusActive   CouponStatus = "active"
	StatusUsed     CouponStatus = "used"
	StatusInactive CouponStatus = "inactive"
)

// ShopifyStatus is the last known status of the remote discount.
type ShopifyStatus string

const (
	ShopifyActive   ShopifyStatus = "active"
	ShopifyDisabled ShopifyStatus = "disabled"
	ShopifyDeleted  ShopifyStatus = "deleted"
)

const (
	// MaxCoupons is the global ceiling on stored coupons.
	MaxCoupons = 10000

	CodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CodeDigits  = "0123456789"
	CodeLength  = 6

	// DiscountTitlePrefix is prepended to the coupon code to form the remote discount title.
	DiscountTitlePrefix = "Coupon Discount "
	DiscountValidity    = 120 * 24 * time.Hour
	DiscountUsageLimit  = 1

	// EmployeeShopifyOrder prefixes the employee code of coupons redeemed by an online order.
	EmployeeShopifyOrder = "SHOPIFY_ORDER"
	LocationOnline       = "ONLINE"
)

// DiscountAmount is the fixed value taken off an order by one coupon.
var DiscountAmount = decimal.NewFromInt(1000)

var codePattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)

// Coupon mirrors a row of the coupons table.
type Coupon struct {
	ID                int           `json:"id"`
	Code              string        `json:"code"`
	Status            CouponStatus  `json:"status"`
	CreatedDate       time.Time     `json:"created_date"`
	UsedDate          *time.Time    `json:"used_date"`
	ScratchedDate     *time.Time    `json:"scratched_date"`
	EmployeeCode      string        `json:"employee_code,omitempty"`
	StoreLocation     string        `json:"store_location,omitempty"`
	IsScratched       bool          `json:"is_scratched"`
	ShopifyDiscountID string        `json:"shopify_discount_id,omitempty"`
	ShopifySynced     bool          `json:"shopify_synced"`
	ShopifyStatus     ShopifyStatus `json:"shopify_status,omitempty"`
}

// HasRemoteDiscount reports whether a Shopify discount is linked to the coupon.
func (c *Coupon) HasRemoteDiscount() bool {
	return c != nil && c.ShopifyDiscountID != ""
}

// CouponFilter narrows List results. Zero values mean no restriction.
type CouponFilter struct {
	Code   string
	Status CouponStatus
	Limit  int
}

// NormalizeCode upper-cases and trims user supplied codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func IsValidCode(code string) bool {
	return codePattern.MatchString(code)
}

func IsValidStatus(s CouponStatus) bool {
	switch s {
	case StatusActive, StatusUsed, StatusInactive:
		return true
	}
	return false
}

// OrderEmployeeCode builds the sentinel employee code recorded for online redemptions.
func OrderEmployeeCode(orderRef string) string {
	orderRef = strings.TrimPrefix(strings.TrimSpace(orderRef), "#")
	if orderRef == "" {
		return EmployeeShopifyOrder
	}
	return EmployeeShopifyOrder + "_" + orderRef
}
