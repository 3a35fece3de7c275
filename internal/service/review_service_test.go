package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type mockReviewRepo struct {
	byPair map[string]models.Review
}

func (m *mockReviewRepo) Upsert(ctx context.Context, review *models.Review) error {
	if m.byPair == nil {
		m.byPair = make(map[string]models.Review)
	}
	key := pairKey(review.CourseID, review.UserID)
	if existing, ok := m.byPair[key]; ok {
		review.ID = existing.ID
	} else if review.ID == "" {
		review.ID = "rev-new"
	}
	m.byPair[key] = *review
	return nil
}

func (m *mockReviewRepo) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Review, error) {
	if r, ok := m.byPair[pairKey(courseID, userID)]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error) {
	var out []models.ReviewDetail
	for _, r := range m.byPair {
		if r.CourseID == courseID {
			out = append(out, models.ReviewDetail{Review: r})
		}
	}
	return out, len(out), nil
}

func (m *mockReviewRepo) AverageForCourse(ctx context.Context, courseID string) (float64, error) {
	sum, count := 0, 0
	for _, r := range m.byPair {
		if r.CourseID == courseID {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return float64(sum) / float64(count), nil
}

func (m *mockReviewRepo) ListByUser(ctx context.Context, userID string) ([]models.ReviewDetail, error) {
	var out []models.ReviewDetail
	for _, r := range m.byPair {
		if r.UserID == userID {
			out = append(out, models.ReviewDetail{Review: r})
		}
	}
	return out, nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, courseID, userID string) error {
	key := pairKey(courseID, userID)
	if _, ok := m.byPair[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.byPair, key)
	return nil
}

func newReviewFixture() (*ReviewService, *mockReviewRepo) {
	repo := &mockReviewRepo{}
	courses := &mockCourseFinder{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Published: true},
	}}
	enrollments := &mockEnrollmentRepo{byPair: map[string]models.Enrollment{
		pairKey("course-1", "student-1"): {ID: "enr-1", CourseID: "course-1", UserID: "student-1"},
	}}
	return NewReviewService(repo, courses, enrollments, nil, nil), repo
}

func TestReviewServiceSubmitRequiresEnrollment(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "course-1", "stranger", ReviewRequest{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceResubmitReplaces(t *testing.T) {
	svc, repo := newReviewFixture()

	first, err := svc.Submit(context.Background(), "course-1", "student-1", ReviewRequest{Rating: 5, Text: "great"})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), "course-1", "student-1", ReviewRequest{Rating: 3, Text: "revised"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// a single row backs both the course listing and the user's view
	listed, total, err := repo.ListByCourse(context.Background(), "course-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 3, listed[0].Rating)

	mine, err := svc.Mine(context.Background(), "course-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Rating)
	assert.Equal(t, "revised", mine.Text)
}

func TestReviewServiceValidatesRating(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "course-1", "student-1", ReviewRequest{Rating: 9})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceListMine(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "course-1", "student-1", ReviewRequest{Rating: 4, Text: "solid"})
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "course-1", mine[0].CourseID)

	none, err := svc.ListMine(context.Background(), "student-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReviewServiceDelete(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "course-1", "student-1", ReviewRequest{Rating: 4})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "course-1", "student-1"))
	err = svc.Delete(context.Background(), "course-1", "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
