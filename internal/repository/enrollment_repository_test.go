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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryCreateBumpsStudentCount(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET student_count = student_count + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), &models.Enrollment{CourseID: "course-1", UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT .* FROM enrollments WHERE course_id").
		WithArgs("course-1", "user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCourseAndUser(context.Background(), "course-1", "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRecordCompletion(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	lockRows := sqlmock.NewRows([]string{"id", "course_id", "user_id", "progress", "completed", "completed_at", "started_at", "updated_at"}).
		AddRow("enr-1", "course-1", "user-1", 50, false, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM enrollments WHERE id = \\$1 FOR UPDATE").
		WithArgs("enr-1").
		WillReturnRows(lockRows)
	mock.ExpectExec("INSERT INTO lecture_completions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lectures l JOIN sections s")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecture_completions WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("UPDATE enrollments SET progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.RecordCompletion(context.Background(), "enr-1", "sec-1", "lec-3")
	require.NoError(t, err)
	require.Equal(t, 75, enrollment.Progress)
	require.False(t, enrollment.Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRecordCompletionFinishesCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	lockRows := sqlmock.NewRows([]string{"id", "course_id", "user_id", "progress", "completed", "completed_at", "started_at", "updated_at"}).
		AddRow("enr-1", "course-1", "user-1", 75, false, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM enrollments WHERE id = \\$1 FOR UPDATE").
		WithArgs("enr-1").
		WillReturnRows(lockRows)
	mock.ExpectExec("INSERT INTO lecture_completions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lectures l JOIN sections s")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lecture_completions WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec("UPDATE enrollments SET progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.RecordCompletion(context.Background(), "enr-1", "sec-2", "lec-4")
	require.NoError(t, err)
	require.Equal(t, 100, enrollment.Progress)
	require.True(t, enrollment.Completed)
	require.NotNil(t, enrollment.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRecordCompletionIdempotent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	lockRows := sqlmock.NewRows([]string{"id", "course_id", "user_id", "progress", "completed", "completed_at", "started_at", "updated_at"}).
		AddRow("enr-1", "course-1", "user-1", 50, false, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM enrollments WHERE id = \\$1 FOR UPDATE").
		WithArgs("enr-1").
		WillReturnRows(lockRows)
	mock.ExpectExec("INSERT INTO lecture_completions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	enrollment, err := repo.RecordCompletion(context.Background(), "enr-1", "sec-1", "lec-2")
	require.NoError(t, err)
	require.Equal(t, 50, enrollment.Progress)
	require.False(t, enrollment.Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRecordCompletionFrozenWhenCompleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	// A course grown after the student finished must not pull a
	// completed enrollment back below 100.
	now := time.Now()
	completedAt := now.Add(-time.Hour)
	lockRows := sqlmock.NewRows([]string{"id", "course_id", "user_id", "progress", "completed", "completed_at", "started_at", "updated_at"}).
		AddRow("enr-1", "course-1", "user-1", 100, true, completedAt, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM enrollments WHERE id = \\$1 FOR UPDATE").
		WithArgs("enr-1").
		WillReturnRows(lockRows)
	mock.ExpectCommit()

	enrollment, err := repo.RecordCompletion(context.Background(), "enr-1", "sec-3", "lec-6")
	require.NoError(t, err)
	require.Equal(t, 100, enrollment.Progress)
	require.True(t, enrollment.Completed)
	require.NotNil(t, enrollment.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteDecrementsStudentCount(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lecture_completions WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET student_count = GREATEST(student_count - 1, 0)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "enr-1", "course-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMonthlyCounts(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"month", "total"}).
		AddRow(1, 5).
		AddRow(3, 2)
	mock.ExpectQuery("SELECT EXTRACT\\(MONTH FROM e.started_at\\)").
		WithArgs("inst-1", 2026).
		WillReturnRows(rows)

	counts, err := repo.MonthlyEnrollmentCounts(context.Background(), "inst-1", 2026)
	require.NoError(t, err)
	require.Len(t, counts, 12)
	require.Equal(t, 5, counts[0])
	require.Equal(t, 0, counts[1])
	require.Equal(t, 2, counts[2])
	require.NoError(t, mock.ExpectationsWereMet())
}
