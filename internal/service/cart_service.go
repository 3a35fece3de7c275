package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type cartRepository interface {
	Add(ctx context.Context, item *models.CartItem) error
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.CartItem, error)
	SetCoupon(ctx context.Context, userID, courseID string, couponCode *string) error
	ListByUser(ctx context.Context, userID string) ([]models.CartItemDetail, error)
	Remove(ctx context.Context, userID, courseID string) error
	Clear(ctx context.Context, userID string) error
}

type cartCouponRepository interface {
	FindByCourseAndCode(ctx context.Context, courseID, code string) (*models.Coupon, error)
}

// CartSummary is the priced view of a student's cart.
type CartSummary struct {
	Items []models.CartItemDetail `json:"items"`
	Total float64                 `json:"total"`
}

// CartService owns the shopping cart. Free courses never enter the
// cart; they are enrolled into directly.
type CartService struct {
	repo        cartRepository
	courses     couponCourseRepository
	coupons     cartCouponRepository
	enrollments courseEnrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCartService constructs a CartService instance.
func NewCartService(repo cartRepository, courses couponCourseRepository, coupons cartCouponRepository, enrollments courseEnrollmentChecker, validate *validator.Validate, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CartService{repo: repo, courses: courses, coupons: coupons, enrollments: enrollments, validator: validate, logger: logger, now: time.Now}
}

// Add puts a published, paid course into the user's cart. Adding a
// course twice, or one the user already owns, is rejected.
func (s *CartService) Add(ctx context.Context, userID, courseID string) (*models.CartItem, error) {
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
	if course.IsFree {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "free courses are enrolled directly")
	}

	enrolled, err := s.enrollments.Exists(ctx, courseID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	}

	item := &models.CartItem{UserID: userID, CourseID: courseID}
	if err := s.repo.Add(ctx, item); err != nil {
		if errors.Is(err, repository.ErrAlreadyInCart) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course is already in the cart")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add to cart")
	}
	return item, nil
}

// ApplyCoupon verifies a coupon against the cart item's course and
// stores its code on the item. The remaining-uses counter is untouched;
// redemption happens at checkout.
func (s *CartService) ApplyCoupon(ctx context.Context, userID, courseID, code string) error {
	if _, err := s.repo.FindByUserAndCourse(ctx, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course is not in the cart")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart item")
	}

	coupon, err := s.coupons.FindByCourseAndCode(ctx, courseID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidCoupon, "coupon not found for this course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
	}
	if !s.now().UTC().Before(coupon.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrInvalidCoupon, "coupon has expired")
	}
	if coupon.UsesRemaining <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidCoupon, "coupon has no uses left")
	}

	if err := s.repo.SetCoupon(ctx, userID, courseID, &coupon.Code); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply coupon")
	}
	return nil
}

// RemoveCoupon clears any applied coupon from the cart item.
func (s *CartService) RemoveCoupon(ctx context.Context, userID, courseID string) error {
	if err := s.repo.SetCoupon(ctx, userID, courseID, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course is not in the cart")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove coupon")
	}
	return nil
}

// List prices the cart. Applied coupons are re-validated on every read;
// a coupon that expired or ran out since it was applied is ignored and
// the course prices at full value.
func (s *CartService) List(ctx context.Context, userID string) (*CartSummary, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cart")
	}

	summary := &CartSummary{Items: make([]models.CartItemDetail, 0, len(items))}
	for _, item := range items {
		item.EffectivePrice = item.Price
		item.DiscountPct = 0
		if item.CouponCode != nil {
			coupon, err := s.coupons.FindByCourseAndCode(ctx, item.CourseID, *item.CouponCode)
			if err == nil && s.now().UTC().Before(coupon.ExpiresAt) && coupon.UsesRemaining > 0 {
				item.DiscountPct = coupon.DiscountPct
				item.EffectivePrice = item.Price * (1 - float64(coupon.DiscountPct)/100)
			} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coupon")
			}
		}
		summary.Total += item.EffectivePrice
		summary.Items = append(summary.Items, item)
	}
	return summary, nil
}

// Remove deletes one course from the cart.
func (s *CartService) Remove(ctx context.Context, userID, courseID string) error {
	if err := s.repo.Remove(ctx, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course is not in the cart")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove from cart")
	}
	return nil
}

// Clear empties the user's cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cart")
	}
	return nil
}
