package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

// UsageRepo answers aggregate questions about coupon usage.
type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) Summary(ctx context.Context) (models.CouponStats, error) {
	stats := models.CouponStats{UsedByLocation: map[string]int{}}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = $3 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_scratched THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN shopify_synced THEN 1 ELSE 0 END), 0)
		FROM coupons
	`
	err := r.db.QueryRowContext(ctx, query,
		string(models.StatusActive),
		string(models.StatusUsed),
		string(models.StatusInactive),
	).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Used,
		&stats.Inactive,
		&stats.Scratched,
		&stats.ShopifySynced,
	)
	if err != nil {
		return stats, fmt.Errorf("coupon summary: %w", err)
	}
	stats.Remaining = max(models.MaxCoupons-stats.Total, 0)

	rows, err := r.db.QueryContext(ctx, `
		SELECT store_location, COUNT(*)
		FROM coupons
		WHERE status = $1 AND store_location IS NOT NULL
		GROUP BY store_location
	`, string(models.StatusUsed))
	if err != nil {
		return stats, fmt.Errorf("usage by location: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			location string
			n        int
		)
		if err := rows.Scan(&location, &n); err != nil {
			return stats, err
		}
		stats.UsedByLocation[location] = n
	}
	return stats, rows.Err()
}
