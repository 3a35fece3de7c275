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

type sectionRepository interface {
	Create(ctx context.Context, section *models.Section) error
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
	Update(ctx context.Context, section *models.Section) error
	Delete(ctx context.Context, id string) error
}

// SectionRequest is the payload for creating or updating a section.
type SectionRequest struct {
	Title      string `json:"title" validate:"required,min=1,max=200"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
	IsPreview  bool   `json:"is_preview"`
}

// SectionService owns curriculum section management.
type SectionService struct {
	repo      sectionRepository
	courses   courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs a SectionService instance.
func NewSectionService(repo sectionRepository, courses courseRepository, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SectionService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// Create adds a section to a course owned by the actor.
func (s *SectionService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if err := s.requireOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}

	section := &models.Section{
		CourseID:   courseID,
		Title:      req.Title,
		OrderIndex: req.OrderIndex,
		IsPreview:  req.IsPreview,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return section, nil
}

// List returns a course's sections in curriculum order.
func (s *SectionService) List(ctx context.Context, courseID string) ([]models.Section, error) {
	sections, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// Update stores editable fields on a section in a course owned by the actor.
func (s *SectionService) Update(ctx context.Context, courseID, sectionID string, actor *models.JWTClaims, req SectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if err := s.requireOwnership(ctx, courseID, actor); err != nil {
		return nil, err
	}

	section, err := s.findInCourse(ctx, courseID, sectionID)
	if err != nil {
		return nil, err
	}

	section.Title = req.Title
	section.OrderIndex = req.OrderIndex
	section.IsPreview = req.IsPreview
	if err := s.repo.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	return section, nil
}

// Delete removes a section and its lectures from a course owned by the actor.
func (s *SectionService) Delete(ctx context.Context, courseID, sectionID string, actor *models.JWTClaims) error {
	if err := s.requireOwnership(ctx, courseID, actor); err != nil {
		return err
	}
	if _, err := s.findInCourse(ctx, courseID, sectionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sectionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	return nil
}

func (s *SectionService) findInCourse(ctx context.Context, courseID, sectionID string) (*models.Section, error) {
	section, err := s.repo.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.CourseID != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	return section, nil
}

func (s *SectionService) requireOwnership(ctx context.Context, courseID string, actor *models.JWTClaims) error {
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
	return nil
}
