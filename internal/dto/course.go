package dto

import (
	"time"

	"github.com/el-mostafi/elearning-api/internal/models"
)

// LectureView is the client-facing shape of a lecture. VideoURL is only
// populated when the content gate allows it.
type LectureView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	IsPreview       bool   `json:"is_preview"`
	VideoURL        string `json:"video_url,omitempty"`
}

// SectionView is the client-facing shape of a section with its lectures.
type SectionView struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	OrderIndex int           `json:"order_index"`
	IsPreview  bool          `json:"is_preview"`
	Lectures   []LectureView `json:"lectures"`
}

// InstructorSummary is the instructor block embedded in course views.
type InstructorSummary struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	ProfileImg string `json:"profile_img,omitempty"`
}

// CourseDetail is a full course view with gated lecture media.
type CourseDetail struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	ImageURL             string             `json:"image_url"`
	Level                models.CourseLevel `json:"level"`
	Language             string             `json:"language"`
	CategoryName         string             `json:"category_name"`
	Price                float64            `json:"price"`
	OldPrice             *float64           `json:"old_price,omitempty"`
	IsFree               bool               `json:"is_free"`
	Published            bool               `json:"published"`
	Instructor           InstructorSummary  `json:"instructor"`
	StudentCount         int                `json:"student_count"`
	AverageRating        float64            `json:"average_rating"`
	TotalDurationSeconds int                `json:"total_duration_seconds"`
	Sections             []SectionView      `json:"sections"`
	Enrolled             bool               `json:"enrolled"`
	CreatedAt            time.Time          `json:"created_at"`
}

// CourseSummary is the card shape used by catalog listings.
type CourseSummary struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	ImageURL             string             `json:"image_url"`
	Level                models.CourseLevel `json:"level"`
	Language             string             `json:"language"`
	CategoryName         string             `json:"category_name"`
	Price                float64            `json:"price"`
	IsFree               bool               `json:"is_free"`
	AverageRating        float64            `json:"average_rating"`
	TotalDurationSeconds int                `json:"total_duration_seconds"`
	StudentCount         int                `json:"student_count"`
	InstructorID         string             `json:"instructor_id"`
	InstructorName       string             `json:"instructor_name"`
	InstructorImg        string             `json:"instructor_img,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}
