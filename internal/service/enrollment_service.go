package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Enrollment, error)
	Exists(ctx context.Context, courseID, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error)
	RecordCompletion(ctx context.Context, enrollmentID, sectionID, lectureID string) (*models.Enrollment, error)
	ListCompletions(ctx context.Context, enrollmentID string) ([]models.LectureCompletion, error)
	Delete(ctx context.Context, enrollmentID, courseID string) error
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentLectureRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
}

type enrollmentSectionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

// certificateIssuer is notified when an enrollment reaches completion.
type certificateIssuer interface {
	IssueForCompletion(ctx context.Context, courseID, userID string) error
}

// EnrollmentProgress bundles an enrollment with its completed lectures.
type EnrollmentProgress struct {
	Enrollment models.Enrollment          `json:"enrollment"`
	Completed  []models.LectureCompletion `json:"completed_lectures"`
}

// EnrollmentService owns the enroll, progress and withdraw use cases.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   enrollmentCourseRepository
	sections  enrollmentSectionRepository
	lectures  enrollmentLectureRepository
	issuer    certificateIssuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance. The
// issuer may be nil when certificate generation is disabled.
func NewEnrollmentService(
	repo enrollmentRepository,
	courses enrollmentCourseRepository,
	sections enrollmentSectionRepository,
	lectures enrollmentLectureRepository,
	issuer certificateIssuer,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		sections:  sections,
		lectures:  lectures,
		issuer:    issuer,
		validator: validate,
		logger:    logger,
	}
}

// Enroll creates an enrollment for the user on a published course. The
// operation is atomic with the course's student counter; enrolling twice
// in the same course is a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, userID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not published")
	}

	enrollment := &models.Enrollment{CourseID: courseID, UserID: userID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrAlreadyEnrolled) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.logger.Info("user enrolled",
		zap.String("course_id", courseID),
		zap.String("user_id", userID))
	return enrollment, nil
}

// ListMine returns the user's enrollments with course context.
func (s *EnrollmentService) ListMine(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Progress returns the user's enrollment on a course together with its
// completed lecture records.
func (s *EnrollmentService) Progress(ctx context.Context, courseID, userID string) (*EnrollmentProgress, error) {
	enrollment, err := s.repo.FindByCourseAndUser(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	completions, err := s.repo.ListCompletions(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completions")
	}
	return &EnrollmentProgress{Enrollment: *enrollment, Completed: completions}, nil
}

// RecordLectureCompletion marks a lecture completed for the user's
// enrollment and recomputes progress. Completing the same lecture twice
// is a no-op. When progress first reaches 100 the enrollment flips to
// completed and a certificate is issued.
func (s *EnrollmentService) RecordLectureCompletion(ctx context.Context, courseID, sectionID, lectureID, userID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByCourseAndUser(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	// Finished enrollments keep their progress at 100 even when the
	// course gains lectures later. Nothing to record.
	if enrollment.Completed {
		return enrollment, nil
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section does not belong to this course")
	}

	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if lecture.SectionID != sectionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture does not belong to this section")
	}

	updated, err := s.repo.RecordCompletion(ctx, enrollment.ID, sectionID, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}

	if updated.Completed && !enrollment.Completed && s.issuer != nil {
		if err := s.issuer.IssueForCompletion(ctx, courseID, userID); err != nil {
			s.logger.Warn("failed to issue completion certificate",
				zap.String("course_id", courseID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	return updated, nil
}

// Withdraw removes the user's enrollment and its progress history. The
// course's student counter drops atomically with the deletion.
func (s *EnrollmentService) Withdraw(ctx context.Context, courseID, userID string) error {
	enrollment, err := s.repo.FindByCourseAndUser(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if err := s.repo.Delete(ctx, enrollment.ID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw")
	}

	s.logger.Info("user withdrew from course",
		zap.String("course_id", courseID),
		zap.String("user_id", userID))
	return nil
}

// IsEnrolled reports whether the user holds an enrollment on the course.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	enrolled, err := s.repo.Exists(ctx, courseID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return enrolled, nil
}
