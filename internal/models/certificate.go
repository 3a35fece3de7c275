package models

import "time"

// CertificateStatus tracks asynchronous certificate generation.
type CertificateStatus string

const (
	CertificateStatusPending CertificateStatus = "PENDING"
	CertificateStatusReady   CertificateStatus = "READY"
	CertificateStatusFailed  CertificateStatus = "FAILED"
)

// Certificate records a completion certificate issued to a student.
// CourseTitle and InstructorName are captured at issue time so later
// course edits do not rewrite issued certificates.
type Certificate struct {
	ID             string            `db:"id" json:"id"`
	CourseID       string            `db:"course_id" json:"course_id"`
	UserID         string            `db:"user_id" json:"user_id"`
	CourseTitle    string            `db:"course_title" json:"course_title"`
	InstructorName string            `db:"instructor_name" json:"instructor_name"`
	Status         CertificateStatus `db:"status" json:"status"`
	FilePath       string            `db:"file_path" json:"-"`
	IssuedAt       time.Time         `db:"issued_at" json:"issued_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}
