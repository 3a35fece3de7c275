package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	"github.com/el-mostafi/elearning-api/pkg/export"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
	"github.com/el-mostafi/elearning-api/pkg/jobs"
	"github.com/el-mostafi/elearning-api/pkg/storage"
)

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Certificate, error)
	ListByUser(ctx context.Context, userID string) ([]models.Certificate, error)
	MarkReady(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id string) error
}

type certificateCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type certificateUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// certificateJobPayload is the unit of work queued per certificate.
type certificateJobPayload struct {
	CertificateID  string
	StudentName    string
	CourseTitle    string
	InstructorName string
	IssuedAt       time.Time
}

// CertificateDownload carries a signed download link for a certificate.
type CertificateDownload struct {
	Certificate models.Certificate `json:"certificate"`
	Token       string             `json:"token"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// CertificateService issues completion certificates. Rendering happens
// on a background queue so completion requests return without waiting
// for PDF generation.
type CertificateService struct {
	repo     certificateRepository
	courses  certificateCourseRepository
	users    certificateUserRepository
	renderer *export.CertificateRenderer
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	queue    *jobs.Queue
	logger   *zap.Logger
}

// NewCertificateService constructs a CertificateService instance. Call
// Start before issuing certificates.
func NewCertificateService(
	repo certificateRepository,
	courses certificateCourseRepository,
	users certificateUserRepository,
	renderer *export.CertificateRenderer,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	queueCfg jobs.QueueConfig,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CertificateService{
		repo:     repo,
		courses:  courses,
		users:    users,
		renderer: renderer,
		store:    store,
		signer:   signer,
		logger:   logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("certificates", s.handleRenderJob, queueCfg)
	return s
}

// Start launches the rendering workers.
func (s *CertificateService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the rendering workers.
func (s *CertificateService) Stop() {
	s.queue.Stop()
}

// IssueForCompletion records a pending certificate for the completed
// enrollment and queues its rendering. Issuing twice for the same pair
// is a no-op.
func (s *CertificateService) IssueForCompletion(ctx context.Context, courseID, userID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return fmt.Errorf("load course for certificate: %w", err)
	}
	student, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load student for certificate: %w", err)
	}
	instructorName := ""
	if instructor, err := s.users.FindByID(ctx, course.InstructorID); err == nil {
		instructorName = instructor.FullName
	}

	cert := &models.Certificate{
		CourseID:       courseID,
		UserID:         userID,
		CourseTitle:    course.Title,
		InstructorName: instructorName,
		Status:         models.CertificateStatusPending,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		if errors.Is(err, repository.ErrCertificateExists) {
			return nil
		}
		return fmt.Errorf("create certificate record: %w", err)
	}

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: "certificate.render",
		Payload: certificateJobPayload{
			CertificateID:  cert.ID,
			StudentName:    student.FullName,
			CourseTitle:    cert.CourseTitle,
			InstructorName: cert.InstructorName,
			IssuedAt:       cert.IssuedAt,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue certificate render: %w", err)
	}

	s.logger.Info("certificate queued",
		zap.String("certificate_id", cert.ID),
		zap.String("course_id", courseID),
		zap.String("user_id", userID))
	return nil
}

// ListMine returns the user's certificates.
func (s *CertificateService) ListMine(ctx context.Context, userID string) ([]models.Certificate, error) {
	certs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// Download returns the certificate with a signed, expiring download
// token. Pending and failed certificates have no file to link.
func (s *CertificateService) Download(ctx context.Context, certificateID, userID string) (*CertificateDownload, error) {
	cert, err := s.repo.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another user")
	}
	if cert.Status != models.CertificateStatusReady {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is not ready yet")
	}

	token, expiresAt, err := s.signer.Generate(cert.ID, cert.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &CertificateDownload{Certificate: *cert, Token: token, ExpiresAt: expiresAt}, nil
}

// OpenSigned validates a signed token and opens the underlying PDF.
func (s *CertificateService) OpenSigned(ctx context.Context, token string) (*os.File, *models.Certificate, error) {
	certificateID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	cert, err := s.repo.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match certificate")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate file")
	}
	return file, cert, nil
}

func (s *CertificateService) handleRenderJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(certificateJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	pdf, err := s.renderer.Render(export.CertificateData{
		StudentName:    payload.StudentName,
		CourseTitle:    payload.CourseTitle,
		InstructorName: payload.InstructorName,
		IssuedAt:       payload.IssuedAt,
	})
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.CertificateID); markErr != nil {
			s.logger.Error("failed to mark certificate failed", zap.Error(markErr))
		}
		return fmt.Errorf("render certificate %s: %w", payload.CertificateID, err)
	}

	filename := fmt.Sprintf("%s.pdf", payload.CertificateID)
	relPath, err := s.store.Save(filename, pdf)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, payload.CertificateID); markErr != nil {
			s.logger.Error("failed to mark certificate failed", zap.Error(markErr))
		}
		return fmt.Errorf("store certificate %s: %w", payload.CertificateID, err)
	}

	if err := s.repo.MarkReady(ctx, payload.CertificateID, relPath); err != nil {
		return fmt.Errorf("mark certificate ready %s: %w", payload.CertificateID, err)
	}

	s.logger.Info("certificate rendered",
		zap.String("certificate_id", payload.CertificateID),
		zap.String("file", relPath))
	return nil
}
