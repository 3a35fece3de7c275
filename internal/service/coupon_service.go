package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/models"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type couponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByID(ctx context.Context, id string) (*models.Coupon, error)
	FindByCourseAndCode(ctx context.Context, courseID, code string) (*models.Coupon, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Coupon, error)
	Update(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id string) error
}

type couponCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CouponCreateRequest is the payload for creating a coupon.
type CouponCreateRequest struct {
	Code          string    `json:"code" validate:"required,min=3,max=32"`
	DiscountPct   int       `json:"discount_pct" validate:"required,gt=0,lte=100"`
	UsesRemaining int       `json:"uses_remaining" validate:"required,gt=0"`
	ExpiresAt     time.Time `json:"expires_at" validate:"required"`
}

// CouponVerifyResult carries the outcome of a successful verification.
type CouponVerifyResult struct {
	Code            string  `json:"code"`
	DiscountPct     int     `json:"discount_pct"`
	Price           float64 `json:"price"`
	DiscountedPrice float64 `json:"discounted_price"`
}

// CouponService owns coupon management and verification.
type CouponService struct {
	repo      couponRepository
	courses   couponCourseRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCouponService constructs a CouponService instance.
func NewCouponService(repo couponRepository, courses couponCourseRepository, validate *validator.Validate, logger *zap.Logger) *CouponService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CouponService{repo: repo, courses: courses, validator: validate, logger: logger, now: time.Now}
}

// Create registers a coupon on a course owned by the actor.
func (s *CouponService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req CouponCreateRequest) (*models.Coupon, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid coupon payload")
	}

	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	coupon := &models.Coupon{
		CourseID:      course.ID,
		Code:          req.Code,
		DiscountPct:   req.DiscountPct,
		UsesRemaining: req.UsesRemaining,
		ExpiresAt:     req.ExpiresAt.UTC(),
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create coupon")
	}
	return coupon, nil
}

// List returns a course's coupons for its owner.
func (s *CouponService) List(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.Coupon, error) {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return nil, err
	}
	coupons, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list coupons")
	}
	return coupons, nil
}

// Delete removes a coupon from a course owned by the actor.
func (s *CouponService) Delete(ctx context.Context, courseID, couponID string, actor *models.JWTClaims) error {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return err
	}

	coupon, err := s.repo.FindByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "coupon not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}
	if coupon.CourseID != courseID {
		return appErrors.Clone(appErrors.ErrNotFound, "coupon not found")
	}

	if err := s.repo.Delete(ctx, couponID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete coupon")
	}
	return nil
}

// Verify checks a coupon code against a course and returns the discount
// it would grant. Verification is read-only: the remaining-uses counter
// is only consumed at checkout, never here. An unknown code is not
// found; an expired coupon is rejected before an exhausted one.
func (s *CouponService) Verify(ctx context.Context, courseID, code string) (*CouponVerifyResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	coupon, err := s.repo.FindByCourseAndCode(ctx, courseID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "coupon not found for this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}

	// The expiry instant itself is already expired.
	if !s.now().UTC().Before(coupon.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCoupon, "coupon has expired")
	}
	if coupon.UsesRemaining <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCoupon, "coupon has no uses left")
	}

	discounted := course.Price * (1 - float64(coupon.DiscountPct)/100)
	if discounted < 0 {
		discounted = 0
	}
	return &CouponVerifyResult{
		Code:            coupon.Code,
		DiscountPct:     coupon.DiscountPct,
		Price:           course.Price,
		DiscountedPrice: discounted,
	}, nil
}

func (s *CouponService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor == nil || (course.InstructorID != actor.UserID && actor.Role != models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may manage coupons")
	}
	return course, nil
}
