package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
)

func newCouponRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCouponRepositoryCreateUppercasesCode(t *testing.T) {
	db, mock, cleanup := newCouponRepoMock(t)
	defer cleanup()
	repo := NewCouponRepository(db)

	mock.ExpectExec("INSERT INTO coupons").WillReturnResult(sqlmock.NewResult(1, 1))

	coupon := &models.Coupon{CourseID: "course-1", Code: "  spring20 ", DiscountPct: 20, UsesRemaining: 10, ExpiresAt: time.Now().Add(time.Hour)}
	err := repo.Create(context.Background(), coupon)
	require.NoError(t, err)
	require.Equal(t, "SPRING20", coupon.Code)
	require.NotEmpty(t, coupon.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepositoryFindByCourseAndCode(t *testing.T) {
	db, mock, cleanup := newCouponRepoMock(t)
	defer cleanup()
	repo := NewCouponRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "code", "discount_pct", "uses_remaining", "expires_at", "created_at"}).
		AddRow("cpn-1", "course-1", "SPRING20", 20, 5, time.Now().Add(time.Hour), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, code, discount_pct, uses_remaining, expires_at, created_at FROM coupons WHERE course_id = $1 AND code = $2")).
		WithArgs("course-1", "SPRING20").
		WillReturnRows(rows)

	coupon, err := repo.FindByCourseAndCode(context.Background(), "course-1", "spring20")
	require.NoError(t, err)
	require.Equal(t, 20, coupon.DiscountPct)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponRepositoryFindNotFound(t *testing.T) {
	db, mock, cleanup := newCouponRepoMock(t)
	defer cleanup()
	repo := NewCouponRepository(db)

	mock.ExpectQuery("SELECT .* FROM coupons WHERE course_id").
		WithArgs("course-1", "NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCourseAndCode(context.Background(), "course-1", "nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
