package models

import "time"

// Review is a single rating+text left by an enrolled user on a course.
// One row per (course, user) pair; course-side and user-side listings
// read the same rows.
type Review struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDetail enriches Review with author and course context.
type ReviewDetail struct {
	Review
	UserName    string `db:"user_name" json:"user_name"`
	UserImg     string `db:"user_img" json:"user_img,omitempty"`
	CourseTitle string `db:"course_title" json:"course_title,omitempty"`
}
