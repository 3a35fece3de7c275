package models

import "time"

// Enrollment captures a participant's relationship to one course. A
// (course, user) pair is unique; progress only moves forward until the
// enrollment is deleted by withdrawal.
type Enrollment struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Progress    int        `db:"progress" json:"progress"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// LectureCompletion records one completed (section, lecture) pair for an
// enrollment.
type LectureCompletion struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	LectureID    string    `db:"lecture_id" json:"lecture_id"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// EnrollmentDetail enriches Enrollment with course info for listings.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle    string  `db:"course_title" json:"course_title"`
	CourseImageURL string  `db:"course_image_url" json:"course_image_url"`
	CoursePrice    float64 `db:"course_price" json:"course_price"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
}
