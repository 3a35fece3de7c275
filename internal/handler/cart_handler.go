package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/el-mostafi/elearning-api/internal/service"
	appErrors "github.com/el-mostafi/elearning-api/pkg/errors"
	"github.com/el-mostafi/elearning-api/pkg/response"
)

// CartHandler exposes shopping cart endpoints.
type CartHandler struct {
	cart *service.CartService
}

// NewCartHandler constructs CartHandler.
func NewCartHandler(cart *service.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

// List godoc
// @Summary Get the cart
// @Description Items with coupon adjusted prices and the running total
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.cart.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Add godoc
// @Summary Add a course to the cart
// @Tags Cart
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /cart/items/{id} [post]
func (h *CartHandler) Add(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	item, err := h.cart.Add(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// ApplyCoupon godoc
// @Summary Apply a coupon to a cart item
// @Tags Cart
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body map[string]string true "Coupon code"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cart/items/{id}/coupon [put]
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "coupon code required"))
		return
	}

	if err := h.cart.ApplyCoupon(c.Request.Context(), claims.UserID, c.Param("id"), payload.Code); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveCoupon godoc
// @Summary Remove a coupon from a cart item
// @Tags Cart
// @Produce json
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Router /cart/items/{id}/coupon [delete]
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.cart.RemoveCoupon(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove godoc
// @Summary Remove a course from the cart
// @Tags Cart
// @Produce json
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cart/items/{id} [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.cart.Remove(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clear godoc
// @Summary Empty the cart
// @Tags Cart
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.cart.Clear(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
