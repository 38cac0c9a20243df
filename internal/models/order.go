package models

// OrderRedemption is the per-code outcome of folding an online order into local state.
type OrderRedemption struct {
	Code                 string `json:"code"`
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	ShopifyDisabled      bool   `json:"shopifyDisabled,omitempty"`
	ShopifyDisableFailed string `json:"shopifyDisableError,omitempty"`
}
