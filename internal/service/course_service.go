package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/dto"
	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListPopular(ctx context.Context, minRating float64, category string, page, pageSize int) ([]repository.PopularCourseRow, int, error)
}

type courseSectionRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
}

type courseLectureRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error)
}

type courseReviewRepository interface {
	AverageForCourse(ctx context.Context, courseID string) (float64, error)
}

type courseUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseEnrollmentChecker interface {
	Exists(ctx context.Context, courseID, userID string) (bool, error)
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CourseCreateRequest is the payload for creating a course.
type CourseCreateRequest struct {
	Title               string   `json:"title" validate:"required,min=3,max=200"`
	Description         string   `json:"description" validate:"required"`
	ImageURL            string   `json:"image_url"`
	Level               string   `json:"level" validate:"required,oneof=Beginner Intermediate Advanced"`
	Language            string   `json:"language" validate:"required"`
	CategoryName        string   `json:"category_name" validate:"required"`
	CategoryDescription string   `json:"category_description"`
	Price               float64  `json:"price" validate:"gte=0"`
	OldPrice            *float64 `json:"old_price"`
	IsFree              bool     `json:"is_free"`
}

// CourseUpdateRequest mirrors the create payload for updates.
type CourseUpdateRequest = CourseCreateRequest

// CatalogConfig tunes the popular-courses ranking and cache.
type CatalogConfig struct {
	PopularCacheTTL time.Duration
	PopularMinScore float64
}

// CourseService owns course management and the public catalog.
type CourseService struct {
	repo        courseRepository
	sections    courseSectionRepository
	lectures    courseLectureRepository
	reviews     courseReviewRepository
	users       courseUserRepository
	enrollments courseEnrollmentChecker
	cache       courseCache
	config      CatalogConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService instance. The cache may be
// nil, in which case catalog reads always hit the database.
func NewCourseService(
	repo courseRepository,
	sections courseSectionRepository,
	lectures courseLectureRepository,
	reviews courseReviewRepository,
	users courseUserRepository,
	enrollments courseEnrollmentChecker,
	cache courseCache,
	config CatalogConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PopularCacheTTL <= 0 {
		config.PopularCacheTTL = 5 * time.Minute
	}
	return &CourseService{
		repo:        repo,
		sections:    sections,
		lectures:    lectures,
		reviews:     reviews,
		users:       users,
		enrollments: enrollments,
		cache:       cache,
		config:      config,
		validator:   validate,
		logger:      logger,
	}
}

// Create registers a draft course owned by the acting instructor.
func (s *CourseService) Create(ctx context.Context, actor *models.JWTClaims, req CourseCreateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:               req.Title,
		Description:         req.Description,
		ImageURL:            req.ImageURL,
		Level:               models.CourseLevel(req.Level),
		Language:            req.Language,
		CategoryName:        req.CategoryName,
		CategoryDescription: req.CategoryDescription,
		Price:               req.Price,
		OldPrice:            req.OldPrice,
		IsFree:              req.IsFree || req.Price == 0,
		InstructorID:        actor.UserID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", actor.UserID))
	return course, nil
}

// Update stores editable fields on a course owned by the actor.
func (s *CourseService) Update(ctx context.Context, courseID string, actor *models.JWTClaims, req CourseUpdateRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	course.Title = req.Title
	course.Description = req.Description
	course.ImageURL = req.ImageURL
	course.Level = models.CourseLevel(req.Level)
	course.Language = req.Language
	course.CategoryName = req.CategoryName
	course.CategoryDescription = req.CategoryDescription
	course.Price = req.Price
	course.OldPrice = req.OldPrice
	course.IsFree = req.IsFree || req.Price == 0

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Publish makes a course visible in the catalog. A course needs at
// least one lecture before it can go live.
func (s *CourseService) Publish(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lectures")
	}
	if len(lectures) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course has no lectures to publish")
	}

	if err := s.repo.SetPublished(ctx, courseID, true); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish course")
	}
	course.Published = true

	s.invalidateCatalog(ctx)
	return course, nil
}

// Unpublish hides a course from the catalog without deleting content.
func (s *CourseService) Unpublish(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPublished(ctx, courseID, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unpublish course")
	}
	course.Published = false

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course and all of its nested content.
func (s *CourseService) Delete(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// List returns the published catalog with filters and pagination.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	filter.PublishedOnly = true
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ListOwn returns the actor's courses, drafts included.
func (s *CourseService) ListOwn(ctx context.Context, actor *models.JWTClaims, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	filter.InstructorID = actor.UserID
	filter.PublishedOnly = false
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Popular returns published courses ranked by enrollments and rating.
// Results are cached per category and page. The second return value
// reports whether the cache served the request.
func (s *CourseService) Popular(ctx context.Context, category string, page, pageSize int) ([]dto.CourseSummary, bool, error) {
	cacheKey := fmt.Sprintf("catalog:popular:%s:%d:%d", category, page, pageSize)
	if s.cache != nil {
		var cached []dto.CourseSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("popular courses cache read failed", zap.Error(err))
		}
	}

	rows, _, err := s.repo.ListPopular(ctx, s.config.PopularMinScore, category, page, pageSize)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular courses")
	}

	summaries := make([]dto.CourseSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.CourseSummary{
			ID:                   row.ID,
			Title:                row.Title,
			Description:          row.Description,
			ImageURL:             row.ImageURL,
			Level:                row.Level,
			Language:             row.Language,
			CategoryName:         row.CategoryName,
			Price:                row.Price,
			IsFree:               row.IsFree,
			AverageRating:        row.AverageRating,
			TotalDurationSeconds: row.TotalDurationSeconds,
			StudentCount:         row.StudentCount,
			InstructorID:         row.InstructorID,
			InstructorName:       row.InstructorName,
			InstructorImg:        row.InstructorImg,
			CreatedAt:            row.CreatedAt,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summaries, s.config.PopularCacheTTL); err != nil {
			s.logger.Warn("popular courses cache write failed", zap.Error(err))
		}
	}
	return summaries, false, nil
}

// Detail returns the full course view for a viewer. Lecture media is
// redacted unless the viewer is enrolled or the content is a preview.
// The viewer may be anonymous (empty viewerID).
func (s *CourseService) Detail(ctx context.Context, courseID, viewerID string) (*dto.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled := false
	if viewerID != "" {
		if viewerID == course.InstructorID {
			enrolled = true
		} else {
			enrolled, err = s.enrollments.Exists(ctx, courseID, viewerID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
			}
		}
	}
	if !course.Published && viewerID != course.InstructorID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	sections, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lectures")
	}
	lecturesBySection := make(map[string][]models.Lecture, len(sections))
	for _, lecture := range lectures {
		lecturesBySection[lecture.SectionID] = append(lecturesBySection[lecture.SectionID], lecture)
	}

	avg, err := s.reviews.AverageForCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating")
	}

	instructor := dto.InstructorSummary{ID: course.InstructorID}
	if owner, err := s.users.FindByID(ctx, course.InstructorID); err == nil {
		instructor.FullName = owner.FullName
		instructor.ProfileImg = owner.ProfileImg
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	return &dto.CourseDetail{
		ID:                   course.ID,
		Title:                course.Title,
		Description:          course.Description,
		ImageURL:             course.ImageURL,
		Level:                course.Level,
		Language:             course.Language,
		CategoryName:         course.CategoryName,
		Price:                course.Price,
		OldPrice:             course.OldPrice,
		IsFree:               course.IsFree,
		Published:            course.Published,
		Instructor:           instructor,
		StudentCount:         course.StudentCount,
		AverageRating:        avg,
		TotalDurationSeconds: totalDuration(lecturesBySection),
		Sections:             buildSectionViews(sections, lecturesBySection, enrolled),
		Enrolled:             enrolled,
		CreatedAt:            course.CreatedAt,
	}, nil
}

func (s *CourseService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor == nil || (course.InstructorID != actor.UserID && actor.Role != models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may modify it")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
