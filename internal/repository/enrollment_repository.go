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

const enrollmentColumns = `id, course_id, user_id, progress, completed, completed_at, started_at, updated_at`

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// ErrAlreadyEnrolled is returned when the course/user pair already has
// an enrollment row.
var ErrAlreadyEnrolled = fmt.Errorf("enrollment already exists")

// EnrollmentRepository handles persistence of enrollments and lecture
// completion records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment and bumps the course's student counter in
// one transaction. A duplicate course/user pair yields ErrAlreadyEnrolled
// and leaves the counter untouched.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.StartedAt.IsZero() {
		enrollment.StartedAt = now
	}
	enrollment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enroll: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insert = `INSERT INTO enrollments (id, course_id, user_id, progress, completed, completed_at, started_at, updated_at)
        VALUES (:id, :course_id, :user_id, :progress, :completed, :completed_at, :started_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("create enrollment: %w", err)
	}

	const bump = `UPDATE courses SET student_count = student_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, enrollment.CourseID, now); err != nil {
		return fmt.Errorf("increment student count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enroll: %w", err)
	}
	return nil
}

// FindByCourseAndUser returns the enrollment for a course/user pair.
func (r *EnrollmentRepository) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND user_id = $2 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, courseID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// Exists reports whether a course/user pair has an enrollment.
func (r *EnrollmentRepository) Exists(ctx context.Context, courseID, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, userID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// ListByUser returns a student's enrollments joined with course data.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s,
        c.title AS course_title, c.image_url AS course_image_url, c.price AS course_price,
        u.full_name AS instructor_name
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN users u ON u.id = c.instructor_id
        WHERE e.user_id = $1
        ORDER BY e.started_at DESC`, prefixColumns("e", enrollmentColumns))
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// RecordCompletion marks a lecture as completed for an enrollment and
// recomputes the stored progress against the live lecture count. The
// enrollment row is locked for the duration so concurrent completions
// serialize. Returns the refreshed enrollment; re-completing an already
// completed lecture is a no-op.
func (r *EnrollmentRepository) RecordCompletion(ctx context.Context, enrollmentID, sectionID, lectureID string) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record completion: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, lockQuery, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}

	// A finished enrollment never moves again, even when lectures were
	// added to the course afterwards. Progress stays at 100.
	if enrollment.Completed {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit record completion: %w", err)
		}
		return &enrollment, nil
	}

	const insert = `INSERT INTO lecture_completions (enrollment_id, section_id, lecture_id, completed_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (enrollment_id, lecture_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, insert, enrollmentID, sectionID, lectureID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("record completion result: %w", err)
	}
	if inserted == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit record completion: %w", err)
		}
		return &enrollment, nil
	}

	const totalQuery = `SELECT COUNT(*) FROM lectures l JOIN sections s ON s.id = l.section_id WHERE s.course_id = $1`
	var total int
	if err := tx.GetContext(ctx, &total, totalQuery, enrollment.CourseID); err != nil {
		return nil, fmt.Errorf("count course lectures: %w", err)
	}

	const completedQuery = `SELECT COUNT(*) FROM lecture_completions WHERE enrollment_id = $1`
	var completed int
	if err := tx.GetContext(ctx, &completed, completedQuery, enrollmentID); err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}

	progress := 0
	if total > 0 {
		progress = completed * 100 / total
	}
	if progress > 100 {
		progress = 100
	}

	now := time.Now().UTC()
	enrollment.Progress = progress
	enrollment.UpdatedAt = now
	if progress >= 100 {
		enrollment.Completed = true
		enrollment.CompletedAt = &now
	}

	const update = `UPDATE enrollments SET progress = $2, completed = $3, completed_at = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, enrollment.ID, enrollment.Progress, enrollment.Completed, enrollment.CompletedAt, enrollment.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update enrollment progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record completion: %w", err)
	}
	return &enrollment, nil
}

// ListCompletions returns an enrollment's completed lecture records.
func (r *EnrollmentRepository) ListCompletions(ctx context.Context, enrollmentID string) ([]models.LectureCompletion, error) {
	const query = `SELECT enrollment_id, section_id, lecture_id, completed_at
        FROM lecture_completions WHERE enrollment_id = $1 ORDER BY completed_at ASC`
	var completions []models.LectureCompletion
	if err := r.db.SelectContext(ctx, &completions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// Delete removes an enrollment, its completion history, and decrements
// the course's student counter in one transaction.
func (r *EnrollmentRepository) Delete(ctx context.Context, enrollmentID, courseID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin withdraw: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lecture_completions WHERE enrollment_id = $1`, enrollmentID); err != nil {
		return fmt.Errorf("delete completions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, enrollmentID); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	const drop = `UPDATE courses SET student_count = GREATEST(student_count - 1, 0), updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, drop, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrement student count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit withdraw: %w", err)
	}
	return nil
}

// CountByUser returns total and completed enrollment counts for a student.
func (r *EnrollmentRepository) CountByUser(ctx context.Context, userID string) (total int, completed int, err error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE completed) FROM enrollments WHERE user_id = $1`
	row := r.db.QueryRowxContext(ctx, query, userID)
	if err := row.Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("count user enrollments: %w", err)
	}
	return total, completed, nil
}

// MonthlyEnrollmentCounts returns per-month enrollment counts across an
// instructor's courses for the current year. The result always has
// twelve entries, January first.
func (r *EnrollmentRepository) MonthlyEnrollmentCounts(ctx context.Context, instructorID string, year int) ([]int, error) {
	const query = `SELECT EXTRACT(MONTH FROM e.started_at)::int AS month, COUNT(*) AS total
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1 AND EXTRACT(YEAR FROM e.started_at) = $2
        GROUP BY month ORDER BY month`
	rows, err := r.db.QueryxContext(ctx, query, instructorID, year)
	if err != nil {
		return nil, fmt.Errorf("monthly enrollment counts: %w", err)
	}
	defer rows.Close()

	counts := make([]int, 12)
	for rows.Next() {
		var month, total int
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("scan monthly count: %w", err)
		}
		if month >= 1 && month <= 12 {
			counts[month-1] = total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly counts: %w", err)
	}
	return counts, nil
}
