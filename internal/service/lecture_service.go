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

type lectureRepository interface {
	Create(ctx context.Context, lecture *models.Lecture) error
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Lecture, error)
	Update(ctx context.Context, lecture *models.Lecture) error
	Delete(ctx context.Context, id string) error
}

// LectureRequest is the payload for creating or updating a lecture.
type LectureRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	Description     string `json:"description"`
	Position        int    `json:"position" validate:"gte=0"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
	VideoURL        string `json:"video_url"`
	StorageKey      string `json:"storage_key"`
	IsPreview       bool   `json:"is_preview"`
}

// LectureService owns lecture management inside a course curriculum.
type LectureService struct {
	repo      lectureRepository
	sections  sectionRepository
	courses   courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLectureService constructs a LectureService instance.
func NewLectureService(repo lectureRepository, sections sectionRepository, courses courseRepository, validate *validator.Validate, logger *zap.Logger) *LectureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LectureService{repo: repo, sections: sections, courses: courses, validator: validate, logger: logger}
}

// Create adds a lecture to a section of a course owned by the actor.
func (s *LectureService) Create(ctx context.Context, courseID, sectionID string, actor *models.JWTClaims, req LectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	if err := s.requireOwnedSection(ctx, courseID, sectionID, actor); err != nil {
		return nil, err
	}

	lecture := &models.Lecture{
		SectionID:       sectionID,
		Position:        req.Position,
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		VideoURL:        req.VideoURL,
		StorageKey:      req.StorageKey,
		IsPreview:       req.IsPreview,
	}
	if err := s.repo.Create(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecture")
	}
	return lecture, nil
}

// Update stores editable fields on a lecture.
func (s *LectureService) Update(ctx context.Context, courseID, sectionID, lectureID string, actor *models.JWTClaims, req LectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	if err := s.requireOwnedSection(ctx, courseID, sectionID, actor); err != nil {
		return nil, err
	}

	lecture, err := s.findInSection(ctx, sectionID, lectureID)
	if err != nil {
		return nil, err
	}

	lecture.Position = req.Position
	lecture.Title = req.Title
	lecture.Description = req.Description
	lecture.DurationSeconds = req.DurationSeconds
	lecture.VideoURL = req.VideoURL
	lecture.StorageKey = req.StorageKey
	lecture.IsPreview = req.IsPreview
	if err := s.repo.Update(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lecture")
	}
	return lecture, nil
}

// Delete removes a lecture and its completion records.
func (s *LectureService) Delete(ctx context.Context, courseID, sectionID, lectureID string, actor *models.JWTClaims) error {
	if err := s.requireOwnedSection(ctx, courseID, sectionID, actor); err != nil {
		return err
	}
	if _, err := s.findInSection(ctx, sectionID, lectureID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, lectureID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lecture")
	}
	return nil
}

func (s *LectureService) findInSection(ctx context.Context, sectionID, lectureID string) (*models.Lecture, error) {
	lecture, err := s.repo.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if lecture.SectionID != sectionID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
	}
	return lecture, nil
}

func (s *LectureService) requireOwnedSection(ctx context.Context, courseID, sectionID string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor == nil || (course.InstructorID != actor.UserID && actor.Role != models.RoleAdmin) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the course owner may modify its curriculum")
	}

	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.CourseID != courseID {
		return appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	return nil
}
