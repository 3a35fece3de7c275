package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/el-mostafi/elearning-api/internal/service"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
	"github.com/el-mostafi/elearning-api/pkg/response"
)

// LectureHandler manages lectures within a section.
type LectureHandler struct {
	lectures *service.LectureService
}

// NewLectureHandler constructs LectureHandler.
func NewLectureHandler(lectures *service.LectureService) *LectureHandler {
	return &LectureHandler{lectures: lectures}
}

// Create godoc
// @Summary Add a lecture to a section
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId path string true "Section ID"
// @Param payload body service.LectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/sections/{sectionId}/lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	var req service.LectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lecture payload"))
		return
	}

	lecture, err := h.lectures.Create(c.Request.Context(), c.Param("id"), c.Param("sectionId"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// Update godoc
// @Summary Update a lecture
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId path string true "Section ID"
// @Param lectureId path string true "Lecture ID"
// @Param payload body service.LectureRequest true "Lecture payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sections/{sectionId}/lectures/{lectureId} [put]
func (h *LectureHandler) Update(c *gin.Context) {
	var req service.LectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lecture payload"))
		return
	}

	lecture, err := h.lectures.Update(c.Request.Context(), c.Param("id"), c.Param("sectionId"), c.Param("lectureId"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// Delete godoc
// @Summary Delete a lecture
// @Tags Curriculum
// @Produce json
// @Param id path string true "Course ID"
// @Param sectionId path string true "Section ID"
// @Param lectureId path string true "Lecture ID"
// @Success 204 {object} response.Envelope
// @Router /courses/{id}/sections/{sectionId}/lectures/{lectureId} [delete]
func (h *LectureHandler) Delete(c *gin.Context) {
	if err := h.lectures.Delete(c.Request.Context(), c.Param("id"), c.Param("sectionId"), c.Param("lectureId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
