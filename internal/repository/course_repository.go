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

const courseColumns = `id, title, description, image_url, level, language, category_name, category_description, price, old_price, is_free, instructor_id, published, student_count, created_at, updated_at`

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, description, image_url, level, language, category_name, category_description, price, old_price, is_free, instructor_id, published, student_count, created_at, updated_at)
        VALUES (:id, :title, :description, :image_url, :level, :language, :category_name, :category_description, :price, :old_price, :is_free, :instructor_id, :published, :student_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 LIMIT 1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// Update stores editable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, image_url = :image_url, level = :level, language = :language,
        category_name = :category_name, category_description = :category_description, price = :price, old_price = :old_price, is_free = :is_free, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetPublished flips the publish flag.
func (r *CourseRepository) SetPublished(ctx context.Context, id string, published bool) error {
	const query = `UPDATE courses SET published = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, published, time.Now().UTC()); err != nil {
		return fmt.Errorf("set course published: %w", err)
	}
	return nil
}

// Delete removes a course and its nested content.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`DELETE FROM lecture_completions WHERE enrollment_id IN (SELECT id FROM enrollments WHERE course_id = $1)`,
		`DELETE FROM enrollments WHERE course_id = $1`,
		`DELETE FROM lectures WHERE section_id IN (SELECT id FROM sections WHERE course_id = $1)`,
		`DELETE FROM sections WHERE course_id = $1`,
		`DELETE FROM coupons WHERE course_id = $1`,
		`DELETE FROM reviews WHERE course_id = $1`,
		`DELETE FROM cart_items WHERE course_id = $1`,
		`DELETE FROM courses WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course: %w", err)
	}
	return nil
}

// List returns courses filtered by the provided criteria with total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category_name = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.PublishedOnly {
		conditions = append(conditions, "published = TRUE")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"created_at":    true,
		"title":         true,
		"price":         true,
		"student_count": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// PopularCourseRow carries ranking data for the catalog.
type PopularCourseRow struct {
	models.Course
	AverageRating        float64 `db:"average_rating"`
	TotalDurationSeconds int     `db:"total_duration_seconds"`
	InstructorName       string  `db:"instructor_name"`
	InstructorImg        string  `db:"instructor_img"`
}

// ListPopular returns published courses ranked by enrollment count then
// average rating, filtered by a minimum rating and optional category.
func (r *CourseRepository) ListPopular(ctx context.Context, minRating float64, category string, page, pageSize int) ([]PopularCourseRow, int, error) {
	base := `FROM courses c
        JOIN users u ON u.id = c.instructor_id
        LEFT JOIN LATERAL (
            SELECT COALESCE(AVG(rating), 0) AS average_rating FROM reviews WHERE course_id = c.id
        ) rv ON TRUE
        LEFT JOIN LATERAL (
            SELECT COALESCE(SUM(l.duration_seconds), 0) AS total_duration_seconds
            FROM lectures l JOIN sections s ON s.id = l.section_id WHERE s.course_id = c.id
        ) du ON TRUE
        WHERE c.published = TRUE AND rv.average_rating >= $1`
	args := []interface{}{minRating}
	if category != "" {
		base += fmt.Sprintf(" AND c.category_name = $%d", len(args)+1)
		args = append(args, category)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 8
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s, rv.average_rating, du.total_duration_seconds,
        u.full_name AS instructor_name, u.profile_img AS instructor_img
        %s ORDER BY c.student_count DESC, rv.average_rating DESC LIMIT %d OFFSET %d`,
		prefixColumns("c", courseColumns), base, pageSize, offset)

	var rows []PopularCourseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list popular courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count popular courses: %w", err)
	}
	return rows, total, nil
}

// TotalLectureCount returns the live number of lectures across all of a
// course's sections.
func (r *CourseRepository) TotalLectureCount(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lectures l JOIN sections s ON s.id = l.section_id WHERE s.course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count course lectures: %w", err)
	}
	return total, nil
}

// ListByInstructor returns all courses owned by an instructor with their
// current rating, for dashboard aggregation.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID string) ([]PopularCourseRow, error) {
	query := fmt.Sprintf(`SELECT %s, rv.average_rating, 0 AS total_duration_seconds,
        u.full_name AS instructor_name, u.profile_img AS instructor_img
        FROM courses c
        JOIN users u ON u.id = c.instructor_id
        LEFT JOIN LATERAL (
            SELECT COALESCE(AVG(rating), 0) AS average_rating FROM reviews WHERE course_id = c.id
        ) rv ON TRUE
        WHERE c.instructor_id = $1
        ORDER BY c.created_at DESC`, prefixColumns("c", courseColumns))
	var rows []PopularCourseRow
	if err := r.db.SelectContext(ctx, &rows, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return rows, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}
