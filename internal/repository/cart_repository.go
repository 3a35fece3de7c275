package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/el-mostafi/elearning-api/internal/models"
)

const cartColumns = `id, user_id, course_id, coupon_code, added_at`

// ErrAlreadyInCart is returned when the course is already present in the
// student's cart.
var ErrAlreadyInCart = fmt.Errorf("course already in cart")

// CartRepository handles persistence of shopping cart items.
type CartRepository struct {
	db *sqlx.DB
}

// NewCartRepository constructs the repository.
func NewCartRepository(db *sqlx.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Add inserts a cart item. A duplicate user/course pair yields
// ErrAlreadyInCart.
func (r *CartRepository) Add(ctx context.Context, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cart_items (id, user_id, course_id, coupon_code, added_at)
        VALUES (:id, :user_id, :course_id, :coupon_code, :added_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrAlreadyInCart
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// FindByUserAndCourse returns a cart item for the user/course pair.
func (r *CartRepository) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.CartItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM cart_items WHERE user_id = $1 AND course_id = $2 LIMIT 1`, cartColumns)
	var item models.CartItem
	if err := r.db.GetContext(ctx, &item, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find cart item: %w", err)
	}
	return &item, nil
}

// SetCoupon attaches or clears the coupon code on a cart item.
func (r *CartRepository) SetCoupon(ctx context.Context, userID, courseID string, couponCode *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE cart_items SET coupon_code = $3 WHERE user_id = $1 AND course_id = $2`, userID, courseID, couponCode)
	if err != nil {
		return fmt.Errorf("set cart coupon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set cart coupon result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByUser returns the student's cart joined with course data, newest
// first.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItemDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        c.title AS course_title, c.image_url AS course_image_url, c.price AS price
        FROM cart_items ci
        JOIN courses c ON c.id = ci.course_id
        WHERE ci.user_id = $1
        ORDER BY ci.added_at DESC`, prefixColumns("ci", cartColumns))
	var items []models.CartItemDetail
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

// Remove deletes one cart item for the user/course pair.
func (r *CartRepository) Remove(ctx context.Context, userID, courseID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove cart item result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Clear empties the student's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
