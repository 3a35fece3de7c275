package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/el-mostafi/elearning-api/internal/dto"
	"github.com/el-mostafi/elearning-api/internal/middleware"
	"github.com/el-mostafi/elearning-api/internal/models"
)

type fakeDashboardSrv struct {
	instructorResp *dto.InstructorDashboardResponse
	instructorErr  error
	instructorHit  bool
	studentResp    *dto.StudentDashboardResponse
	studentErr     error
	lastInstructor string
	lastStudent    string
}

func (f *fakeDashboardSrv) Instructor(_ context.Context, instructorID string) (*dto.InstructorDashboardResponse, bool, error) {
	f.lastInstructor = instructorID
	return f.instructorResp, f.instructorHit, f.instructorErr
}

func (f *fakeDashboardSrv) Student(_ context.Context, userID string) (*dto.StudentDashboardResponse, error) {
	f.lastStudent = userID
	return f.studentResp, f.studentErr
}

func TestDashboardHandlerInstructorRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/instructor", nil)

	handler.Instructor(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerInstructorSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		instructorResp: &dto.InstructorDashboardResponse{InstructorID: "inst-1", TotalStudents: 42},
		instructorHit:  true,
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/instructor", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})

	handler.Instructor(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inst-1", service.lastInstructor)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "inst-1", envelope.Data["instructor_id"])
}

func TestDashboardHandlerStudentSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		studentResp: &dto.StudentDashboardResponse{UserID: "stud-1", EnrolledCourses: 3},
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/student", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stud-1", Role: models.RoleStudent})

	handler.Student(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stud-1", service.lastStudent)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(3), envelope.Data["enrolled_courses"])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
