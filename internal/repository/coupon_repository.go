package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/el-mostafi/elearning-api/internal/models"
)

const couponColumns = `id, course_id, code, discount_pct, uses_remaining, expires_at, created_at`

// CouponRepository handles persistence of course coupons.
type CouponRepository struct {
	db *sqlx.DB
}

// NewCouponRepository constructs the repository.
func NewCouponRepository(db *sqlx.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// Create persists a new coupon. Codes are stored uppercased.
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO coupons (id, course_id, code, discount_pct, uses_remaining, expires_at, created_at)
        VALUES (:id, :course_id, :code, :discount_pct, :uses_remaining, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, coupon); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// FindByCourseAndCode looks up a coupon by its course and code.
// Comparison is case-insensitive.
func (r *CouponRepository) FindByCourseAndCode(ctx context.Context, courseID, code string) (*models.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE course_id = $1 AND code = $2 LIMIT 1`, couponColumns)
	var coupon models.Coupon
	if err := r.db.GetContext(ctx, &coupon, query, courseID, strings.ToUpper(strings.TrimSpace(code))); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return &coupon, nil
}

// FindByID returns a coupon by identifier.
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*models.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE id = $1 LIMIT 1`, couponColumns)
	var coupon models.Coupon
	if err := r.db.GetContext(ctx, &coupon, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find coupon by id: %w", err)
	}
	return &coupon, nil
}

// ListByCourse returns all coupons bound to a course.
func (r *CouponRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE course_id = $1 ORDER BY created_at DESC`, couponColumns)
	var coupons []models.Coupon
	if err := r.db.SelectContext(ctx, &coupons, query, courseID); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

// Update stores editable coupon fields.
func (r *CouponRepository) Update(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = strings.ToUpper(strings.TrimSpace(coupon.Code))
	const query = `UPDATE coupons SET code = :code, discount_pct = :discount_pct, uses_remaining = :uses_remaining, expires_at = :expires_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, coupon); err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

// Delete removes a coupon and clears any cart references to it.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete coupon: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const clear = `UPDATE cart_items SET coupon_code = NULL
        WHERE coupon_code = (SELECT code FROM coupons WHERE id = $1)
        AND course_id = (SELECT course_id FROM coupons WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, clear, id); err != nil {
		return fmt.Errorf("clear coupon from carts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM coupons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete coupon: %w", err)
	}
	return nil
}
