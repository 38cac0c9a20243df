// Package memory is an in-process coupon store with the same conditional
// update semantics as the SQL repository. It backs the memory database
// driver and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

type Store struct {
	mu     sync.RWMutex
	nextID int
	byCode map[string]*models.Coupon
}

func New() *Store {
	return &Store{byCode: make(map[string]*models.Coupon)}
}

func clone(c *models.Coupon) *models.Coupon {
	cp := *c
	if c.UsedDate != nil {
		t := *c.UsedDate
		cp.UsedDate = &t
	}
	if c.ScratchedDate != nil {
		t := *c.ScratchedDate
		cp.ScratchedDate = &t
	}
	return &cp
}

func (s *Store) Insert(_ context.Context, code string, createdAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[code]; ok {
		return false, nil
	}
	s.nextID++
	s.byCode[code] = &models.Coupon{
		ID:          s.nextID,
		Code:        code,
		Status:      models.StatusActive,
		CreatedDate: createdAt.UTC(),
	}
	return true, nil
}

// Put stores a coupon as-is, replacing any row with the same code.
func (s *Store) Put(c models.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	} else if c.ID > s.nextID {
		s.nextID = c.ID
	}
	s.byCode[c.Code] = clone(&c)
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode), nil
}

func (s *Store) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (s *Store) GetByDiscountID(_ context.Context, discountID string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byCode {
		if discountID != "" && c.ShopifyDiscountID == discountID {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (s *Store) List(_ context.Context, f models.CouponFilter) ([]models.Coupon, error) {
	out := s.filter(func(c *models.Coupon) bool {
		if f.Code != "" && c.Code != f.Code {
			return false
		}
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].CreatedDate.After(out[j].CreatedDate)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) MarkUsed(_ context.Context, code, employeeCode, storeLocation string, at time.Time) (bool, error) {
	return s.update(code, func(c *models.Coupon) bool {
		if c.Status != models.StatusActive || c.UsedDate != nil {
			return false
		}
		t := at.UTC()
		c.Status = models.StatusUsed
		c.UsedDate = &t
		c.EmployeeCode = employeeCode
		c.StoreLocation = storeLocation
		return true
	})
}

func (s *Store) MarkScratched(_ context.Context, code string, at time.Time) (bool, error) {
	return s.update(code, func(c *models.Coupon) bool {
		if c.IsScratched {
			return false
		}
		t := at.UTC()
		c.IsScratched = true
		c.ScratchedDate = &t
		return true
	})
}

func (s *Store) Deactivate(_ context.Context, code, reason string, at time.Time) (bool, error) {
	return s.update(code, func(c *models.Coupon) bool {
		if c.Status != models.StatusActive {
			return false
		}
		t := at.UTC()
		c.Status = models.StatusInactive
		c.UsedDate = &t
		c.EmployeeCode = reason
		return true
	})
}

func (s *Store) LinkDiscount(_ context.Context, code, discountID string, status models.ShopifyStatus) (bool, error) {
	return s.update(code, func(c *models.Coupon) bool {
		if c.ShopifyDiscountID != "" {
			return false
		}
		c.ShopifyDiscountID = discountID
		c.ShopifySynced = true
		c.ShopifyStatus = status
		return true
	})
}

func (s *Store) SetShopifyStatus(_ context.Context, code string, status models.ShopifyStatus) error {
	_, err := s.update(code, func(c *models.Coupon) bool {
		c.ShopifyStatus = status
		return true
	})
	return err
}

func (s *Store) ListPendingSync(context.Context) ([]models.Coupon, error) {
	out := s.filter(func(c *models.Coupon) bool {
		return c.Status == models.StatusActive && !c.ShopifySynced
	})
	sortByID(out)
	return out, nil
}

func (s *Store) ListSynced(context.Context) ([]models.Coupon, error) {
	out := s.filter(func(c *models.Coupon) bool {
		return c.ShopifyDiscountID != ""
	})
	sortByID(out)
	return out, nil
}

func (s *Store) Summary(context.Context) (models.CouponStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.CouponStats{UsedByLocation: map[string]int{}}
	for _, c := range s.byCode {
		stats.Total++
		switch c.Status {
		case models.StatusActive:
			stats.Active++
		case models.StatusUsed:
			stats.Used++
			if c.StoreLocation != "" {
				stats.UsedByLocation[c.StoreLocation]++
			}
		case models.StatusInactive:
			stats.Inactive++
		}
		if c.IsScratched {
			stats.Scratched++
		}
		if c.ShopifySynced {
			stats.ShopifySynced++
		}
	}
	stats.Remaining = max(models.MaxCoupons-stats.Total, 0)
	return stats, nil
}

func (s *Store) update(code string, fn func(c *models.Coupon) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok {
		return false, nil
	}
	return fn(c), nil
}

func (s *Store) filter(keep func(c *models.Coupon) bool) []models.Coupon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Coupon{}
	for _, c := range s.byCode {
		if keep(c) {
			out = append(out, *clone(c))
		}
	}
	return out
}

func sortByID(cs []models.Coupon) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
