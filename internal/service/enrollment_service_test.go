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

type mockEnrollmentRepo struct {
	byPair      map[string]models.Enrollment
	completions map[string]map[string]bool
	total       int
	deleted     []string
	createErr   error
}

func pairKey(courseID, userID string) string { return courseID + "|" + userID }

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.byPair == nil {
		m.byPair = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	m.byPair[pairKey(enrollment.CourseID, enrollment.UserID)] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Enrollment, error) {
	if e, ok := m.byPair[pairKey(courseID, userID)]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, courseID, userID string) (bool, error) {
	_, ok := m.byPair[pairKey(courseID, userID)]
	return ok, nil
}

func (m *mockEnrollmentRepo) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.byPair {
		if e.UserID == userID {
			out = append(out, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) RecordCompletion(ctx context.Context, enrollmentID, sectionID, lectureID string) (*models.Enrollment, error) {
	if m.completions == nil {
		m.completions = make(map[string]map[string]bool)
	}
	if m.completions[enrollmentID] == nil {
		m.completions[enrollmentID] = make(map[string]bool)
	}
	var target *models.Enrollment
	var key string
	for k, e := range m.byPair {
		if e.ID == enrollmentID {
			copied := e
			target, key = &copied, k
		}
	}
	if target == nil {
		return nil, sql.ErrNoRows
	}
	if target.Completed {
		return target, nil
	}
	if !m.completions[enrollmentID][lectureID] {
		m.completions[enrollmentID][lectureID] = true
		done := len(m.completions[enrollmentID])
		target.Progress = done * 100 / m.total
		if target.Progress >= 100 && !target.Completed {
			now := time.Now().UTC()
			target.Completed = true
			target.CompletedAt = &now
		}
		m.byPair[key] = *target
	}
	return target, nil
}

func (m *mockEnrollmentRepo) ListCompletions(ctx context.Context, enrollmentID string) ([]models.LectureCompletion, error) {
	var out []models.LectureCompletion
	for lectureID := range m.completions[enrollmentID] {
		out = append(out, models.LectureCompletion{EnrollmentID: enrollmentID, LectureID: lectureID})
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, enrollmentID, courseID string) error {
	for k, e := range m.byPair {
		if e.ID == enrollmentID {
			delete(m.byPair, k)
		}
	}
	delete(m.completions, enrollmentID)
	m.deleted = append(m.deleted, enrollmentID)
	return nil
}

type mockCourseFinder struct {
	courses map[string]models.Course
}

func (m *mockCourseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockSectionFinder struct {
	sections map[string]models.Section
}

func (m *mockSectionFinder) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockLectureFinder struct {
	lectures map[string]models.Lecture
}

func (m *mockLectureFinder) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	if l, ok := m.lectures[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

type mockIssuer struct {
	issued [][2]string
}

func (m *mockIssuer) IssueForCompletion(ctx context.Context, courseID, userID string) error {
	m.issued = append(m.issued, [2]string{courseID, userID})
	return nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockIssuer) {
	repo := &mockEnrollmentRepo{total: 2}
	courses := &mockCourseFinder{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Go Basics", Published: true, InstructorID: "inst-1"},
		"draft-1":  {ID: "draft-1", Title: "Draft", Published: false, InstructorID: "inst-1"},
	}}
	sections := &mockSectionFinder{sections: map[string]models.Section{
		"sec-1": {ID: "sec-1", CourseID: "course-1"},
		"sec-x": {ID: "sec-x", CourseID: "other-course"},
	}}
	lectures := &mockLectureFinder{lectures: map[string]models.Lecture{
		"lec-1": {ID: "lec-1", SectionID: "sec-1"},
		"lec-2": {ID: "lec-2", SectionID: "sec-1"},
	}}
	issuer := &mockIssuer{}
	svc := NewEnrollmentService(repo, courses, sections, lectures, issuer, nil, nil)
	return svc, repo, issuer
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "course-1", enrollment.CourseID)
	assert.Equal(t, 0, enrollment.Progress)
	assert.False(t, enrollment.Completed)
}

func TestEnrollmentServiceEnrollDuplicateConflicts(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)

	repo.createErr = repository.ErrAlreadyEnrolled
	_, err = svc.Enroll(context.Background(), "course-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollUnpublished(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "draft-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollUnknownCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecordCompletionProgress(t *testing.T) {
	svc, _, issuer := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)

	enrollment, err := svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, enrollment.Progress)
	assert.False(t, enrollment.Completed)
	assert.Empty(t, issuer.issued)
}

func TestEnrollmentServiceCompletionIssuesCertificateOnce(t *testing.T) {
	svc, _, issuer := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)

	_, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.NoError(t, err)
	enrollment, err := svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-2", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, enrollment.Progress)
	assert.True(t, enrollment.Completed)
	require.Len(t, issuer.issued, 1)

	// re-completing an already counted lecture stays a no-op
	enrollment, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-2", "user-1")
	require.NoError(t, err)
	assert.True(t, enrollment.Completed)
	assert.Len(t, issuer.issued, 1)
}

func TestEnrollmentServiceCompletedEnrollmentStaysAt100(t *testing.T) {
	svc, repo, issuer := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	_, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.NoError(t, err)
	_, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-2", "user-1")
	require.NoError(t, err)

	// The course doubles in size after the student finished. Reporting
	// another lecture must leave the finished enrollment untouched.
	repo.total = 4
	enrollment, err := svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-3", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100, enrollment.Progress)
	assert.True(t, enrollment.Completed)
	assert.NotNil(t, enrollment.CompletedAt)
	assert.Len(t, issuer.issued, 1)
}

func TestEnrollmentServiceRecordCompletionSectionMismatch(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)

	_, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-x", "lec-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRecordCompletionNotEnrolled(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceWithdraw(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Withdraw(context.Background(), "course-1", "user-1"))
	require.Len(t, repo.deleted, 1)

	err = svc.Withdraw(context.Background(), "course-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReenrollAfterWithdrawStartsFresh(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	enrollment, err := svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, 50, enrollment.Progress)

	require.NoError(t, svc.Withdraw(context.Background(), "course-1", "user-1"))

	// No soft state survives a withdrawal.
	enrollment, err = svc.Enroll(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, enrollment.Progress)
	assert.False(t, enrollment.Completed)
	assert.Nil(t, enrollment.CompletedAt)

	enrollment, err = svc.RecordLectureCompletion(context.Background(), "course-1", "sec-1", "lec-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, enrollment.Progress)
	assert.False(t, enrollment.Completed)
}
