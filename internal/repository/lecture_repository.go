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

const lectureColumns = `id, section_id, position, title, description, duration_seconds, video_url, storage_key, is_preview, created_at, updated_at`

// LectureRepository handles persistence of lectures.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// Create persists a new lecture.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lecture.CreatedAt = now
	lecture.UpdatedAt = now
	const query = `INSERT INTO lectures (id, section_id, position, title, description, duration_seconds, video_url, storage_key, is_preview, created_at, updated_at)
        VALUES (:id, :section_id, :position, :title, :description, :duration_seconds, :video_url, :storage_key, :is_preview, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// FindByID returns a lecture by identifier.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := fmt.Sprintf(`SELECT %s FROM lectures WHERE id = $1 LIMIT 1`, lectureColumns)
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture by id: %w", err)
	}
	return &lecture, nil
}

// ListBySection returns a section's lectures ordered by position.
func (r *LectureRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Lecture, error) {
	query := fmt.Sprintf(`SELECT %s FROM lectures WHERE section_id = $1 ORDER BY position ASC, created_at ASC`, lectureColumns)
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, sectionID); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	return lectures, nil
}

// ListByCourse returns every lecture of a course joined through its
// sections, ordered by section then lecture position.
func (r *LectureRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error) {
	query := fmt.Sprintf(`SELECT %s FROM lectures l
        JOIN sections s ON s.id = l.section_id
        WHERE s.course_id = $1
        ORDER BY s.order_index ASC, l.position ASC`, prefixColumns("l", lectureColumns))
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, courseID); err != nil {
		return nil, fmt.Errorf("list course lectures: %w", err)
	}
	return lectures, nil
}

// Update stores editable lecture fields.
func (r *LectureRepository) Update(ctx context.Context, lecture *models.Lecture) error {
	lecture.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lectures SET position = :position, title = :title, description = :description,
        duration_seconds = :duration_seconds, video_url = :video_url, storage_key = :storage_key, is_preview = :is_preview, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	return nil
}

// Delete removes a lecture and its completion records.
func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete lecture: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lecture_completions WHERE lecture_id = $1`, id); err != nil {
		return fmt.Errorf("delete lecture completions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lectures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete lecture: %w", err)
	}
	return nil
}
