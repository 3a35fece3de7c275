package models

import "time"

// CourseLevel enumerates supported difficulty levels.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "Beginner"
	LevelIntermediate CourseLevel = "Intermediate"
	LevelAdvanced     CourseLevel = "Advanced"
)

// Course represents a published or draft course owned by an instructor.
type Course struct {
	ID                  string      `db:"id" json:"id"`
	Title               string      `db:"title" json:"title"`
	Description         string      `db:"description" json:"description"`
	ImageURL            string      `db:"image_url" json:"image_url"`
	Level               CourseLevel `db:"level" json:"level"`
	Language            string      `db:"language" json:"language"`
	CategoryName        string      `db:"category_name" json:"category_name"`
	CategoryDescription string      `db:"category_description" json:"category_description,omitempty"`
	Price               float64     `db:"price" json:"price"`
	OldPrice            *float64    `db:"old_price" json:"old_price,omitempty"`
	IsFree              bool        `db:"is_free" json:"is_free"`
	InstructorID        string      `db:"instructor_id" json:"instructor_id"`
	Published           bool        `db:"published" json:"published"`
	StudentCount        int         `db:"student_count" json:"student_count"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// Section groups lectures inside a course, ordered by OrderIndex.
type Section struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	Title      string    `db:"title" json:"title"`
	OrderIndex int       `db:"order_index" json:"order_index"`
	IsPreview  bool      `db:"is_preview" json:"is_preview"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Lecture is a playable unit inside a section. The ID is stable once
// created so completion records can reference it durably.
type Lecture struct {
	ID              string    `db:"id" json:"id"`
	SectionID       string    `db:"section_id" json:"section_id"`
	Position        int       `db:"position" json:"position"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description,omitempty"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	VideoURL        string    `db:"video_url" json:"video_url,omitempty"`
	StorageKey      string    `db:"storage_key" json:"-"`
	IsPreview       bool      `db:"is_preview" json:"is_preview"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Coupon grants a percentage discount on its course, bounded by expiry
// and a remaining-uses counter.
type Coupon struct {
	ID            string    `db:"id" json:"id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	Code          string    `db:"code" json:"code"`
	DiscountPct   int       `db:"discount_pct" json:"discount_pct"`
	UsesRemaining int       `db:"uses_remaining" json:"uses_remaining"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	InstructorID  string
	Category      string
	Level         string
	Search        string
	PublishedOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
