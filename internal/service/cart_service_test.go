package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type mockCartRepo struct {
	items map[string]models.CartItem
}

func (m *mockCartRepo) Add(ctx context.Context, item *models.CartItem) error {
	if m.items == nil {
		m.items = make(map[string]models.CartItem)
	}
	key := pairKey(item.CourseID, item.UserID)
	if _, ok := m.items[key]; ok {
		return repository.ErrAlreadyInCart
	}
	if item.ID == "" {
		item.ID = "cart-new"
	}
	m.items[key] = *item
	return nil
}

func (m *mockCartRepo) FindByUserAndCourse(ctx context.Context, userID, courseID string) (*models.CartItem, error) {
	if item, ok := m.items[pairKey(courseID, userID)]; ok {
		return &item, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCartRepo) SetCoupon(ctx context.Context, userID, courseID string, couponCode *string) error {
	key := pairKey(courseID, userID)
	item, ok := m.items[key]
	if !ok {
		return sql.ErrNoRows
	}
	item.CouponCode = couponCode
	m.items[key] = item
	return nil
}

func (m *mockCartRepo) ListByUser(ctx context.Context, userID string) ([]models.CartItemDetail, error) {
	var out []models.CartItemDetail
	for _, item := range m.items {
		if item.UserID == userID {
			out = append(out, models.CartItemDetail{CartItem: item, Price: 100})
		}
	}
	return out, nil
}

func (m *mockCartRepo) Remove(ctx context.Context, userID, courseID string) error {
	key := pairKey(courseID, userID)
	if _, ok := m.items[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, key)
	return nil
}

func (m *mockCartRepo) Clear(ctx context.Context, userID string) error {
	for k, item := range m.items {
		if item.UserID == userID {
			delete(m.items, k)
		}
	}
	return nil
}

func newCartFixture() (*CartService, *mockCartRepo, *mockCouponRepo) {
	cartRepo := &mockCartRepo{}
	couponRepo := &mockCouponRepo{coupons: map[string]models.Coupon{
		"cpn-valid": {
			ID: "cpn-valid", CourseID: "course-1", Code: "SPRING20",
			DiscountPct: 20, UsesRemaining: 5, ExpiresAt: time.Now().Add(24 * time.Hour),
		},
	}}
	courses := &mockCourseFinder{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Price: 100, Published: true},
		"free-1":   {ID: "free-1", Price: 0, IsFree: true, Published: true},
		"draft-1":  {ID: "draft-1", Price: 50, Published: false},
	}}
	enrollments := &mockEnrollmentRepo{byPair: map[string]models.Enrollment{
		pairKey("course-owned", "user-1"): {ID: "enr-1", CourseID: "course-owned", UserID: "user-1"},
	}}
	svc := NewCartService(cartRepo, courses, couponRepo, enrollments, nil, nil)
	return svc, cartRepo, couponRepo
}

func TestCartServiceAdd(t *testing.T) {
	svc, _, _ := newCartFixture()

	item, err := svc.Add(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "course-1", item.CourseID)

	_, err = svc.Add(context.Background(), "user-1", "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCartServiceAddRejectsDraftAndFree(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.Add(context.Background(), "user-1", "draft-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = svc.Add(context.Background(), "user-1", "free-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestCartServiceApplyCouponPricesCart(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.Add(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	require.NoError(t, svc.ApplyCoupon(context.Background(), "user-1", "course-1", "spring20"))

	summary, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 20, summary.Items[0].DiscountPct)
	assert.InDelta(t, 80.0, summary.Items[0].EffectivePrice, 0.001)
	assert.InDelta(t, 80.0, summary.Total, 0.001)
}

func TestCartServiceStaleCouponFallsBackToFullPrice(t *testing.T) {
	svc, _, couponRepo := newCartFixture()

	_, err := svc.Add(context.Background(), "user-1", "course-1")
	require.NoError(t, err)
	require.NoError(t, svc.ApplyCoupon(context.Background(), "user-1", "course-1", "SPRING20"))

	// coupon expires after being applied
	stale := couponRepo.coupons["cpn-valid"]
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	couponRepo.coupons["cpn-valid"] = stale

	summary, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, 0, summary.Items[0].DiscountPct)
	assert.InDelta(t, 100.0, summary.Items[0].EffectivePrice, 0.001)
}

func TestCartServiceApplyInvalidCoupon(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.Add(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	err = svc.ApplyCoupon(context.Background(), "user-1", "course-1", "NOPE")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCoupon.Code, appErrors.FromError(err).Code)
}

func TestCartServiceRemove(t *testing.T) {
	svc, _, _ := newCartFixture()

	_, err := svc.Add(context.Background(), "user-1", "course-1")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), "user-1", "course-1"))
	err = svc.Remove(context.Background(), "user-1", "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
