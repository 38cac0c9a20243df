package models

// CouponStats aggregates the coupons table.
type CouponStats struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	Used           int            `json:"used"`
	Inactive       int            `json:"inactive"`
	Scratched      int            `json:"scratched"`
	ShopifySynced  int            `json:"shopifySynced"`
	Remaining      int            `json:"remaining"`
	UsedByLocation map[string]int `json:"usedByLocation"`
}
