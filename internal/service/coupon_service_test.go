package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type mockCouponRepo struct {
	coupons map[string]models.Coupon
	deleted []string
}

func (m *mockCouponRepo) Create(ctx context.Context, coupon *models.Coupon) error {
	if m.coupons == nil {
		m.coupons = make(map[string]models.Coupon)
	}
	if coupon.ID == "" {
		coupon.ID = "cpn-new"
	}
	coupon.Code = strings.ToUpper(coupon.Code)
	m.coupons[coupon.ID] = *coupon
	return nil
}

func (m *mockCouponRepo) FindByID(ctx context.Context, id string) (*models.Coupon, error) {
	if c, ok := m.coupons[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCouponRepo) FindByCourseAndCode(ctx context.Context, courseID, code string) (*models.Coupon, error) {
	for _, c := range m.coupons {
		if c.CourseID == courseID && c.Code == strings.ToUpper(strings.TrimSpace(code)) {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCouponRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Coupon, error) {
	var out []models.Coupon
	for _, c := range m.coupons {
		if c.CourseID == courseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCouponRepo) Update(ctx context.Context, coupon *models.Coupon) error {
	m.coupons[coupon.ID] = *coupon
	return nil
}

func (m *mockCouponRepo) Delete(ctx context.Context, id string) error {
	delete(m.coupons, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newCouponFixture() (*CouponService, *mockCouponRepo) {
	repo := &mockCouponRepo{coupons: map[string]models.Coupon{
		"cpn-valid": {
			ID: "cpn-valid", CourseID: "course-1", Code: "SPRING20",
			DiscountPct: 20, UsesRemaining: 5, ExpiresAt: time.Now().Add(24 * time.Hour),
		},
		"cpn-expired": {
			ID: "cpn-expired", CourseID: "course-1", Code: "OLD50",
			DiscountPct: 50, UsesRemaining: 5, ExpiresAt: time.Now().Add(-time.Hour),
		},
		"cpn-drained": {
			ID: "cpn-drained", CourseID: "course-1", Code: "GONE10",
			DiscountPct: 10, UsesRemaining: 0, ExpiresAt: time.Now().Add(24 * time.Hour),
		},
	}}
	courses := &mockCourseFinder{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Price: 100, Published: true, InstructorID: "inst-1"},
	}}
	return NewCouponService(repo, courses, nil, nil), repo
}

func TestCouponServiceVerify(t *testing.T) {
	svc, _ := newCouponFixture()

	result, err := svc.Verify(context.Background(), "course-1", "spring20")
	require.NoError(t, err)
	assert.Equal(t, 20, result.DiscountPct)
	assert.InDelta(t, 80.0, result.DiscountedPrice, 0.001)
}

func TestCouponServiceVerifyUnknownCode(t *testing.T) {
	svc, _ := newCouponFixture()

	_, err := svc.Verify(context.Background(), "course-1", "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCouponServiceVerifyExpired(t *testing.T) {
	svc, _ := newCouponFixture()

	_, err := svc.Verify(context.Background(), "course-1", "OLD50")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCoupon.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "expired")
}

func TestCouponServiceVerifyExpiresAtBoundary(t *testing.T) {
	svc, repo := newCouponFixture()

	expiry := repo.coupons["cpn-valid"].ExpiresAt

	// One instant before expiry the coupon still verifies.
	svc.now = func() time.Time { return expiry.Add(-time.Nanosecond) }
	_, err := svc.Verify(context.Background(), "course-1", "SPRING20")
	require.NoError(t, err)

	// The expiry instant itself is already expired.
	svc.now = func() time.Time { return expiry }
	_, err = svc.Verify(context.Background(), "course-1", "SPRING20")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCoupon.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "expired")
}

func TestCouponServiceVerifyExhausted(t *testing.T) {
	svc, _ := newCouponFixture()

	_, err := svc.Verify(context.Background(), "course-1", "GONE10")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCoupon.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "no uses left")
}

func TestCouponServiceVerifyDoesNotConsumeUses(t *testing.T) {
	svc, repo := newCouponFixture()

	for i := 0; i < 3; i++ {
		_, err := svc.Verify(context.Background(), "course-1", "SPRING20")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, repo.coupons["cpn-valid"].UsesRemaining)
}

func TestCouponServiceCreateRequiresOwnership(t *testing.T) {
	svc, _ := newCouponFixture()

	req := CouponCreateRequest{Code: "NEW15", DiscountPct: 15, UsesRemaining: 3, ExpiresAt: time.Now().Add(time.Hour)}
	actor := &models.JWTClaims{UserID: "someone-else", Role: models.RoleInstructor}
	_, err := svc.Create(context.Background(), "course-1", actor, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	owner := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}
	coupon, err := svc.Create(context.Background(), "course-1", owner, req)
	require.NoError(t, err)
	assert.Equal(t, "NEW15", coupon.Code)
}
