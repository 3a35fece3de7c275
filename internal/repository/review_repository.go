package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/el-mostafi/elearning-api/internal/models"
)

const reviewColumns = `id, course_id, user_id, rating, text, created_at, updated_at`

// ReviewRepository handles persistence of course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert inserts a review or replaces the existing one for the same
// course/user pair. A student keeps at most one review per course.
func (r *ReviewRepository) Upsert(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, course_id, user_id, rating, text, created_at, updated_at)
        VALUES (:id, :course_id, :user_id, :rating, :text, :created_at, :updated_at)
        ON CONFLICT (course_id, user_id)
        DO UPDATE SET rating = EXCLUDED.rating, text = EXCLUDED.text, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// FindByCourseAndUser returns a student's review of a course.
func (r *ReviewRepository) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE course_id = $1 AND user_id = $2 LIMIT 1`, reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, courseID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// ListByCourse returns a course's reviews with author data, newest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s,
        u.full_name AS user_name, u.profile_img AS user_img, c.title AS course_title
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        JOIN courses c ON c.id = r.course_id
        WHERE r.course_id = $1
        ORDER BY r.created_at DESC LIMIT %d OFFSET %d`, prefixColumns("r", reviewColumns), pageSize, offset)
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, courseID); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reviews WHERE course_id = $1`, courseID); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return reviews, total, nil
}

// ListByUser returns every review a student has written, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]models.ReviewDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        u.full_name AS user_name, u.profile_img AS user_img, c.title AS course_title
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        JOIN courses c ON c.id = r.course_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC`, prefixColumns("r", reviewColumns))
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, userID); err != nil {
		return nil, fmt.Errorf("list user reviews: %w", err)
	}
	return reviews, nil
}

// AverageForCourse returns the mean rating of a course, zero when it has
// no reviews.
func (r *ReviewRepository) AverageForCourse(ctx context.Context, courseID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE course_id = $1`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, courseID); err != nil {
		return 0, fmt.Errorf("average course rating: %w", err)
	}
	return avg, nil
}

// Delete removes a student's review of a course.
func (r *ReviewRepository) Delete(ctx context.Context, courseID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
