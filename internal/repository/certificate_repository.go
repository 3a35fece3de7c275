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

const certificateColumns = `id, course_id, user_id, course_title, instructor_name, status, file_path, issued_at, updated_at`

// ErrCertificateExists is returned when the course/user pair already has
// a certificate row.
var ErrCertificateExists = fmt.Errorf("certificate already exists")

// CertificateRepository handles persistence of completion certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a pending certificate. A duplicate course/user pair
// yields ErrCertificateExists.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = now
	}
	cert.UpdatedAt = now
	if cert.Status == "" {
		cert.Status = models.CertificateStatusPending
	}
	const query = `INSERT INTO certificates (id, course_id, user_id, course_title, instructor_name, status, file_path, issued_at, updated_at)
        VALUES (:id, :course_id, :user_id, :course_title, :instructor_name, :status, :file_path, :issued_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrCertificateExists
		}
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID returns a certificate by identifier.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1 LIMIT 1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by id: %w", err)
	}
	return &cert, nil
}

// FindByCourseAndUser returns the certificate for a course/user pair.
func (r *CertificateRepository) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE course_id = $1 AND user_id = $2 LIMIT 1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, courseID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

// ListByUser returns all of a student's certificates, newest first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID string) ([]models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE user_id = $1 ORDER BY issued_at DESC`, certificateColumns)
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, userID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// CountByUser returns the number of certificates issued to a student.
func (r *CertificateRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM certificates WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return total, nil
}

// MarkReady records the rendered file path and flips the status to READY.
func (r *CertificateRepository) MarkReady(ctx context.Context, id, filePath string) error {
	const query = `UPDATE certificates SET status = $2, file_path = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CertificateStatusReady, filePath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark certificate ready: %w", err)
	}
	return nil
}

// MarkFailed flips the status to FAILED after a rendering error.
func (r *CertificateRepository) MarkFailed(ctx context.Context, id string) error {
	const query = `UPDATE certificates SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CertificateStatusFailed, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark certificate failed: %w", err)
	}
	return nil
}
