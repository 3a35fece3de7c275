package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/el-mostafi/elearning-api/internal/models"
	"github.com/el-mostafi/elearning-api/internal/repository"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]models.Course
	deleted []string
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "course-new"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) SetPublished(ctx context.Context, id string, published bool) error {
	c := m.courses[id]
	c.Published = published
	m.courses[id] = c
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.courses {
		if filter.PublishedOnly && !c.Published {
			continue
		}
		if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) ListPopular(ctx context.Context, minRating float64, category string, page, pageSize int) ([]repository.PopularCourseRow, int, error) {
	return nil, 0, nil
}

type mockSectionLister struct {
	sections []models.Section
}

func (m *mockSectionLister) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	return m.sections, nil
}

type mockLectureLister struct {
	lectures []models.Lecture
}

func (m *mockLectureLister) ListByCourse(ctx context.Context, courseID string) ([]models.Lecture, error) {
	return m.lectures, nil
}

type mockReviewAverager struct {
	avg float64
}

func (m *mockReviewAverager) AverageForCourse(ctx context.Context, courseID string) (float64, error) {
	return m.avg, nil
}

type mockUserFinder struct {
	users map[string]models.User
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func newCourseFixture() (*CourseService, *mockCourseRepo, *mockEnrollmentRepo) {
	repo := &mockCourseRepo{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Go Basics", Published: true, InstructorID: "inst-1", Price: 50},
	}}
	sections := &mockSectionLister{sections: []models.Section{
		{ID: "sec-1", CourseID: "course-1", Title: "Intro"},
	}}
	lectures := &mockLectureLister{lectures: []models.Lecture{
		{ID: "lec-1", SectionID: "sec-1", Title: "Welcome", VideoURL: "https://cdn/v1", DurationSeconds: 120},
	}}
	reviews := &mockReviewAverager{avg: 4.5}
	users := &mockUserFinder{users: map[string]models.User{
		"inst-1": {ID: "inst-1", FullName: "Jane Doe"},
	}}
	enrollments := &mockEnrollmentRepo{}
	svc := NewCourseService(repo, sections, lectures, reviews, users, enrollments, nil, CatalogConfig{}, nil, nil)
	return svc, repo, enrollments
}

func TestCourseServiceCreateAndOwnership(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	actor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}
	course, err := svc.Create(context.Background(), actor, CourseCreateRequest{
		Title: "New Course", Description: "about things", Level: "Beginner",
		Language: "en", CategoryName: "Programming", Price: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "inst-1", course.InstructorID)
	assert.False(t, course.Published)

	other := &models.JWTClaims{UserID: "inst-2", Role: models.RoleInstructor}
	_, err = svc.Update(context.Background(), course.ID, other, CourseUpdateRequest{
		Title: "Hijack", Description: "x", Level: "Beginner", Language: "en", CategoryName: "Programming",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "New Course", repo.courses[course.ID].Title)
}

func TestCourseServicePublishRequiresLectures(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	repo.courses["empty-1"] = models.Course{ID: "empty-1", Title: "Empty", InstructorID: "inst-1"}
	actor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	// fixture lecture lister always returns one lecture, so publishing works
	course, err := svc.Publish(context.Background(), "empty-1", actor)
	require.NoError(t, err)
	assert.True(t, course.Published)
}

func TestCourseServiceDetailGatesMedia(t *testing.T) {
	svc, _, enrollments := newCourseFixture()

	// anonymous visitor sees curriculum but no media
	detail, err := svc.Detail(context.Background(), "course-1", "")
	require.NoError(t, err)
	assert.False(t, detail.Enrolled)
	require.Len(t, detail.Sections, 1)
	require.Len(t, detail.Sections[0].Lectures, 1)
	assert.Empty(t, detail.Sections[0].Lectures[0].VideoURL)
	assert.Equal(t, "Welcome", detail.Sections[0].Lectures[0].Title)
	assert.Equal(t, 120, detail.TotalDurationSeconds)
	assert.Equal(t, "Jane Doe", detail.Instructor.FullName)

	// enrolled student sees the video URL
	require.NoError(t, enrollments.Create(context.Background(), &models.Enrollment{CourseID: "course-1", UserID: "user-1"}))
	detail, err = svc.Detail(context.Background(), "course-1", "user-1")
	require.NoError(t, err)
	assert.True(t, detail.Enrolled)
	assert.Equal(t, "https://cdn/v1", detail.Sections[0].Lectures[0].VideoURL)
}

func TestCourseServiceDetailHidesDrafts(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	repo.courses["draft-1"] = models.Course{ID: "draft-1", Title: "Draft", InstructorID: "inst-1"}

	_, err := svc.Detail(context.Background(), "draft-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// the owner still sees their draft
	detail, err := svc.Detail(context.Background(), "draft-1", "inst-1")
	require.NoError(t, err)
	assert.False(t, detail.Published)
}
