package service

import (
	"github.com/el-mostafi/elearning-api/internal/dto"
	"github.com/el-mostafi/elearning-api/internal/models"
)

// buildSectionViews shapes sections and lectures for a course response,
// redacting lecture media the viewer is not allowed to play. A lecture's
// video URL is visible when the viewer is enrolled, or when the lecture
// or its section is flagged as a preview. Everything else about the
// lecture stays visible so the catalog can show the full curriculum.
func buildSectionViews(sections []models.Section, lecturesBySection map[string][]models.Lecture, enrolled bool) []dto.SectionView {
	views := make([]dto.SectionView, 0, len(sections))
	for _, section := range sections {
		sectionView := dto.SectionView{
			ID:         section.ID,
			Title:      section.Title,
			OrderIndex: section.OrderIndex,
			IsPreview:  section.IsPreview,
			Lectures:   make([]dto.LectureView, 0, len(lecturesBySection[section.ID])),
		}
		for _, lecture := range lecturesBySection[section.ID] {
			view := dto.LectureView{
				ID:              lecture.ID,
				Title:           lecture.Title,
				Description:     lecture.Description,
				DurationSeconds: lecture.DurationSeconds,
				IsPreview:       lecture.IsPreview,
			}
			if enrolled || lecture.IsPreview || section.IsPreview {
				view.VideoURL = lecture.VideoURL
			}
			sectionView.Lectures = append(sectionView.Lectures, view)
		}
		views = append(views, sectionView)
	}
	return views
}

// totalDuration sums lecture durations across all sections.
func totalDuration(lecturesBySection map[string][]models.Lecture) int {
	total := 0
	for _, lectures := range lecturesBySection {
		for _, lecture := range lectures {
			total += lecture.DurationSeconds
		}
	}
	return total
}
