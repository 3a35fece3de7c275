package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/models"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type reviewRepository interface {
	Upsert(ctx context.Context, review *models.Review) error
	FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Review, error)
	ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error)
	AverageForCourse(ctx context.Context, courseID string) (float64, error)
	ListByUser(ctx context.Context, userID string) ([]models.ReviewDetail, error)
	Delete(ctx context.Context, courseID, userID string) error
}

// ReviewRequest is the payload for submitting a review.
type ReviewRequest struct {
	Rating int    `json:"rating" validate:"required,gte=1,lte=5"`
	Text   string `json:"text" validate:"max=2000"`
}

// ReviewService owns course reviews. Only enrolled students may review,
// and a student holds at most one review per course; resubmitting
// replaces the previous one.
type ReviewService struct {
	repo        reviewRepository
	courses     couponCourseRepository
	enrollments courseEnrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs a ReviewService instance.
func NewReviewService(repo reviewRepository, courses couponCourseRepository, enrollments courseEnrollmentChecker, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{repo: repo, courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// Submit creates or replaces the user's review of a course.
func (s *ReviewService) Submit(ctx context.Context, courseID, userID string, req ReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled, err := s.enrollments.Exists(ctx, courseID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only enrolled students may review a course")
	}

	review := &models.Review{
		CourseID: courseID,
		UserID:   userID,
		Rating:   req.Rating,
		Text:     req.Text,
	}
	if err := s.repo.Upsert(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save review")
	}
	return review, nil
}

// ListForCourse returns a course's reviews with author context.
func (s *ReviewService) ListForCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, *models.Pagination, error) {
	reviews, total, err := s.repo.ListByCourse(ctx, courseID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, paginationFor(page, pageSize, total), nil
}

// ListMine returns every review the user has written across courses.
func (s *ReviewService) ListMine(ctx context.Context, userID string) ([]models.ReviewDetail, error) {
	reviews, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// Mine returns the user's review on a course, if any.
func (s *ReviewService) Mine(ctx context.Context, courseID, userID string) (*models.Review, error) {
	review, err := s.repo.FindByCourseAndUser(ctx, courseID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// Delete removes the user's review of a course.
func (s *ReviewService) Delete(ctx context.Context, courseID, userID string) error {
	if err := s.repo.Delete(ctx, courseID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	return nil
}
