package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/el-mostafi/elearning-api/internal/models"
)

func gateFixture() ([]models.Section, map[string][]models.Lecture) {
	sections := []models.Section{
		{ID: "sec-1", CourseID: "course-1", Title: "Intro", OrderIndex: 0, IsPreview: true},
		{ID: "sec-2", CourseID: "course-1", Title: "Deep dive", OrderIndex: 1},
	}
	lectures := map[string][]models.Lecture{
		"sec-1": {
			{ID: "lec-1", SectionID: "sec-1", Title: "Welcome", VideoURL: "https://cdn/v1", DurationSeconds: 60},
		},
		"sec-2": {
			{ID: "lec-2", SectionID: "sec-2", Title: "Internals", VideoURL: "https://cdn/v2", DurationSeconds: 600},
			{ID: "lec-3", SectionID: "sec-2", Title: "Teaser", VideoURL: "https://cdn/v3", DurationSeconds: 30, IsPreview: true},
		},
	}
	return sections, lectures
}

func TestBuildSectionViewsRedactsForVisitors(t *testing.T) {
	sections, lectures := gateFixture()

	views := buildSectionViews(sections, lectures, false)
	assert.Len(t, views, 2)

	// preview section keeps its media visible
	assert.Equal(t, "https://cdn/v1", views[0].Lectures[0].VideoURL)
	// gated lecture is redacted, preview lecture is not
	assert.Empty(t, views[1].Lectures[0].VideoURL)
	assert.Equal(t, "https://cdn/v3", views[1].Lectures[1].VideoURL)

	// metadata survives redaction
	assert.Equal(t, "Internals", views[1].Lectures[0].Title)
	assert.Equal(t, 600, views[1].Lectures[0].DurationSeconds)
}

func TestBuildSectionViewsEnrolledSeesEverything(t *testing.T) {
	sections, lectures := gateFixture()

	views := buildSectionViews(sections, lectures, true)
	assert.Equal(t, "https://cdn/v1", views[0].Lectures[0].VideoURL)
	assert.Equal(t, "https://cdn/v2", views[1].Lectures[0].VideoURL)
	assert.Equal(t, "https://cdn/v3", views[1].Lectures[1].VideoURL)
}

func TestTotalDuration(t *testing.T) {
	_, lectures := gateFixture()
	assert.Equal(t, 690, totalDuration(lectures))
}
