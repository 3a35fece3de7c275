package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/el-mostafi/elearning-api/internal/service"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
	"github.com/el-mostafi/elearning-api/pkg/response"
)

// CouponHandler manages course coupons and public verification.
type CouponHandler struct {
	coupons *service.CouponService
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(coupons *service.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// Create godoc
// @Summary Create a coupon for a course
// @Tags Coupons
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CouponCreateRequest true "Coupon payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/coupons [post]
func (h *CouponHandler) Create(c *gin.Context) {
	var req service.CouponCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid coupon payload"))
		return
	}

	coupon, err := h.coupons.Create(c.Request.Context(), c.Param("id"), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, coupon)
}

// List godoc
// @Summary List coupons of a course
// @Tags Coupons
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/coupons [get]
func (h *CouponHandler) List(c *gin.Context) {
	coupons, err := h.coupons.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coupons, nil)
}

// Delete godoc
// @Summary Delete a coupon
// @Tags Coupons
// @Produce json
// @Param id path string true "Course ID"
// @Param couponId path string true "Coupon ID"
// @Success 204 {object} response.Envelope
// @Router /courses/{id}/coupons/{couponId} [delete]
func (h *CouponHandler) Delete(c *gin.Context) {
	if err := h.coupons.Delete(c.Request.Context(), c.Param("id"), c.Param("couponId"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Verify godoc
// @Summary Verify a coupon code
// @Description Read-only price preview, redemption happens at checkout
// @Tags Coupons
// @Produce json
// @Param id path string true "Course ID"
// @Param code query string true "Coupon code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/coupons/verify [get]
func (h *CouponHandler) Verify(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "coupon code is required"))
		return
	}

	result, err := h.coupons.Verify(c.Request.Context(), c.Param("id"), code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
