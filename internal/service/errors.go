package service

import "errors"

var (
	ErrNotFound         = errors.New("coupon: not found")
	ErrAlreadyUsed      = errors.New("coupon: already used")
	ErrNotActive        = errors.New("coupon: not active")
	ErrAlreadyScratched = errors.New("coupon: already scratched")
	ErrInvalidInput     = errors.New("coupon: invalid input")
	ErrCeilingReached   = errors.New("coupon: maximum number of coupons reached")
)
