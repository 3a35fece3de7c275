package dto

// DashboardCourse is a compact course entry in dashboard rankings.
type DashboardCourse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ImageURL     string  `json:"image_url"`
	StudentCount int     `json:"student_count"`
	Rating       float64 `json:"rating"`
	Level        string  `json:"level"`
	Category     string  `json:"category"`
}

// InstructorDashboardResponse aggregates an instructor's teaching stats.
type InstructorDashboardResponse struct {
	InstructorID       string            `json:"instructor_id"`
	TotalStudents      int               `json:"total_students"`
	CoursesCreated     int               `json:"courses_created"`
	AverageRating      float64           `json:"average_rating"`
	EnrollmentsByMonth []int             `json:"enrollments_by_month"`
	TopCourses         []DashboardCourse `json:"top_courses"`
}

// StudentDashboardResponse summarises a student's learning activity.
type StudentDashboardResponse struct {
	UserID             string `json:"user_id"`
	EnrolledCourses    int    `json:"enrolled_courses"`
	CompletedCourses   int    `json:"completed_courses"`
	CertificatesEarned int    `json:"certificates_earned"`
}
