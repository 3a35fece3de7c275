package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/dto"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type dashboardCourseRepository interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]repository.PopularCourseRow, error)
}

type dashboardEnrollmentRepository interface {
	CountByUser(ctx context.Context, userID string) (total int, completed int, err error)
	MonthlyEnrollmentCounts(ctx context.Context, instructorID string, year int) ([]int, error)
}

type dashboardCertificateRepository interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// DashboardConfig tunes dashboard caching.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// DashboardService aggregates teaching and learning stats. Instructor
// aggregates are cached since they fan out over several queries.
type DashboardService struct {
	courses      dashboardCourseRepository
	enrollments  dashboardEnrollmentRepository
	certificates dashboardCertificateRepository
	cache        *CacheService
	config       DashboardConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(
	courses dashboardCourseRepository,
	enrollments dashboardEnrollmentRepository,
	certificates dashboardCertificateRepository,
	cache *CacheService,
	config DashboardConfig,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}
	return &DashboardService{
		courses:      courses,
		enrollments:  enrollments,
		certificates: certificates,
		cache:        cache,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// Instructor aggregates the instructor's course and enrollment stats.
// The second return value reports whether the cache served the request.
func (s *DashboardService) Instructor(ctx context.Context, instructorID string) (*dto.InstructorDashboardResponse, bool, error) {
	cacheKey := fmt.Sprintf("dashboard:instructor:%s", instructorID)
	if s.cache != nil {
		var cached dto.InstructorDashboardResponse
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	courses, err := s.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor courses")
	}

	resp := &dto.InstructorDashboardResponse{
		InstructorID:   instructorID,
		CoursesCreated: len(courses),
		TopCourses:     make([]dto.DashboardCourse, 0, len(courses)),
	}

	ratedCourses := 0
	for _, course := range courses {
		resp.TotalStudents += course.StudentCount
		if course.AverageRating > 0 {
			resp.AverageRating += course.AverageRating
			ratedCourses++
		}
		resp.TopCourses = append(resp.TopCourses, dto.DashboardCourse{
			ID:           course.ID,
			Title:        course.Title,
			ImageURL:     course.ImageURL,
			StudentCount: course.StudentCount,
			Rating:       course.AverageRating,
			Level:        string(course.Level),
			Category:     course.CategoryName,
		})
	}
	if ratedCourses > 0 {
		resp.AverageRating /= float64(ratedCourses)
	}

	sort.Slice(resp.TopCourses, func(i, j int) bool {
		return resp.TopCourses[i].StudentCount > resp.TopCourses[j].StudentCount
	})
	if len(resp.TopCourses) > 5 {
		resp.TopCourses = resp.TopCourses[:5]
	}

	monthly, err := s.enrollments.MonthlyEnrollmentCounts(ctx, instructorID, s.now().UTC().Year())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment trend")
	}
	resp.EnrollmentsByMonth = monthly

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, resp, s.config.CacheTTL); err != nil {
			s.logger.Warn("instructor dashboard cache write failed", zap.Error(err))
		}
	}
	return resp, false, nil
}

// Student summarises the student's learning activity.
func (s *DashboardService) Student(ctx context.Context, userID string) (*dto.StudentDashboardResponse, error) {
	total, completed, err := s.enrollments.CountByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	certs, err := s.certificates.CountByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	return &dto.StudentDashboardResponse{
		UserID:             userID,
		EnrolledCourses:    total,
		CompletedCourses:   completed,
		CertificatesEarned: certs,
	}, nil
}

// InvalidateInstructor drops the cached instructor dashboard, called
// after enrollment and review writes.
func (s *DashboardService) InvalidateInstructor(ctx context.Context, instructorID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dashboard:instructor:%s", instructorID)); err != nil {
		s.logger.Warn("instructor dashboard invalidation failed", zap.Error(err))
	}
}
