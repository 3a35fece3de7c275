package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
)

func newReviewRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReviewRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newReviewRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").WillReturnResult(sqlmock.NewResult(1, 1))

	review := &models.Review{CourseID: "course-1", UserID: "user-1", Rating: 4, Text: "solid intro"}
	err := repo.Upsert(context.Background(), review)
	require.NoError(t, err)
	require.NotEmpty(t, review.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryAverageForCourse(t *testing.T) {
	db, mock, cleanup := newReviewRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.25))

	avg, err := repo.AverageForCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.InDelta(t, 4.25, avg, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newReviewRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reviews WHERE course_id = $1 AND user_id = $2")).
		WithArgs("course-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "course-1", "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
