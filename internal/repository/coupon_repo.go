package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Cheertaboi/scratch-coupon-service/internal/models"
)

const couponColumns = `id, code, status, created_date, used_date, scratched_date,
	employee_code, store_location, is_scratched, shopify_discount_id,
	shopify_synced, shopify_status`

type CouponRepo struct {
	db *sql.DB
}

func NewCouponRepo(db *sql.DB) *CouponRepo {
	return &CouponRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	var (
		c             models.Coupon
		status        string
		usedDate      sql.NullTime
		scratchedDate sql.NullTime
		employeeCode  sql.NullString
		storeLocation sql.NullString
		discountID    sql.NullString
		shopifyStatus sql.NullString
	)
	err := row.Scan(
		&c.ID,
		&c.Code,
		&status,
		&c.CreatedDate,
		&usedDate,
		&scratchedDate,
		&employeeCode,
		&storeLocation,
		&c.IsScratched,
		&discountID,
		&c.ShopifySynced,
		&shopifyStatus,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CouponStatus(status)
	if usedDate.Valid {
		t := usedDate.Time
		c.UsedDate = &t
	}
	if scratchedDate.Valid {
		t := scratchedDate.Time
		c.ScratchedDate = &t
	}
	c.EmployeeCode = employeeCode.String
	c.StoreLocation = storeLocation.String
	c.ShopifyDiscountID = discountID.String
	c.ShopifyStatus = models.ShopifyStatus(shopifyStatus.String)
	return &c, nil
}

func (r *CouponRepo) getOne(ctx context.Context, query string, args ...any) (*models.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *CouponRepo) list(ctx context.Context, query string, args ...any) ([]models.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := []models.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

// Insert stores a fresh active coupon. A code that already exists is reported
// as inserted=false without an error.
func (r *CouponRepo) Insert(ctx context.Context, code string, createdAt time.Time) (bool, error) {
	query := `
		INSERT INTO coupons (code, status, created_date, is_scratched, shopify_synced)
		VALUES ($1, $2, $3, FALSE, FALSE)
		ON CONFLICT (code) DO NOTHING
		RETURNING id
	`
	var id int
	err := r.db.QueryRowContext(ctx, query, code, string(models.StatusActive), createdAt.UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert coupon %s: %w", code, err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func (r *CouponRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count coupons: %w", err)
	}
	return n, nil
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
}

func (r *CouponRepo) GetByDiscountID(ctx context.Context, discountID string) (*models.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE shopify_discount_id = $1 LIMIT 1`, discountID)
}

func (r *CouponRepo) List(ctx context.Context, f models.CouponFilter) ([]models.Coupon, error) {
	var (
		where []string
		args  []any
	)
	if f.Code != "" {
		args = append(args, f.Code)
		where = append(where, fmt.Sprintf("code = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + couponColumns + ` FROM coupons`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_date DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.list(ctx, query, args...)
}

// MarkUsed redeems the coupon only while it is still active and unused.
func (r *CouponRepo) MarkUsed(ctx context.Context, code, employeeCode, storeLocation string, at time.Time) (bool, error) {
	query := `
		UPDATE coupons
		SET status = $2, used_date = $3, employee_code = $4, store_location = $5
		WHERE code = $1 AND status = $6 AND used_date IS NULL
	`
	return r.execConditional(ctx, query, code, string(models.StatusUsed), at.UTC(), employeeCode, storeLocation, string(models.StatusActive))
}

func (r *CouponRepo) MarkScratched(ctx context.Context, code string, at time.Time) (bool, error) {
	query := `
		UPDATE coupons
		SET is_scratched = TRUE, scratched_date = $2
		WHERE code = $1 AND is_scratched = FALSE
	`
	return r.execConditional(ctx, query, code, at.UTC())
}

func (r *CouponRepo) Deactivate(ctx context.Context, code, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE coupons
		SET status = $2, used_date = $3, employee_code = $4
		WHERE code = $1 AND status = $5
	`
	return r.execConditional(ctx, query, code, string(models.StatusInactive), at.UTC(), reason, string(models.StatusActive))
}

// LinkDiscount records the remote discount only when none is linked yet.
func (r *CouponRepo) LinkDiscount(ctx context.Context, code, discountID string, status models.ShopifyStatus) (bool, error) {
	query := `
		UPDATE coupons
		SET shopify_discount_id = $2, shopify_synced = TRUE, shopify_status = $3
		WHERE code = $1 AND shopify_discount_id IS NULL
	`
	return r.execConditional(ctx, query, code, discountID, string(status))
}

func (r *CouponRepo) SetShopifyStatus(ctx context.Context, code string, status models.ShopifyStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE coupons SET shopify_status = $2 WHERE code = $1`, code, string(status))
	if err != nil {
		return fmt.Errorf("set shopify status %s: %w", code, err)
	}
	return nil
}

func (r *CouponRepo) ListPendingSync(ctx context.Context) ([]models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE status = $1 AND shopify_synced = FALSE
		ORDER BY id`
	return r.list(ctx, query, string(models.StatusActive))
}

func (r *CouponRepo) ListSynced(ctx context.Context) ([]models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons
		WHERE shopify_discount_id IS NOT NULL
		ORDER BY id`
	return r.list(ctx, query)
}

func (r *CouponRepo) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
