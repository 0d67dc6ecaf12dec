package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/cart"
	"github.com/MikeMC777/buildmart/internal/httpx"
)

// getCartHandler godoc
// @Summary      Show the caller's cart
// @Description  Lines whose product was removed or deactivated are flagged unavailable and excluded from the total.
// @Tags         cart
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  cart.View
// @Router       /cart [get]
func getCartHandler(svc *cart.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svc.List(c.Request.Context(), auth.PrincipalFrom(c))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// addCartItemHandler godoc
// @Summary      Add a product to the cart
// @Description  Adding a product already in the cart increases its quantity.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      cart.AddItemRequest  true  "Item"
// @Success      201   {object}  cart.Item
// @Failure      400   {object}  apperr.Body
// @Failure      409   {object}  apperr.Body
// @Router       /cart [post]
func addCartItemHandler(svc *cart.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.AddItemRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		it, err := svc.Add(c.Request.Context(), auth.PrincipalFrom(c), in.ProductID, in.Quantity)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, it)
	}
}

// setCartItemHandler godoc
// @Summary      Set the quantity of a cart line
// @Description  A quantity of zero removes the line and answers 204.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Cart item ID"
// @Param        body  body      cart.SetQuantityRequest  true  "Quantity"
// @Success      200   {object}  cart.Item
// @Success      204
// @Failure      404   {object}  apperr.Body
// @Router       /cart/{id} [put]
func setCartItemHandler(svc *cart.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in cart.SetQuantityRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		if in.Quantity == nil {
			httpx.Error(c, log, apperr.Validation("quantity is required"))
			return
		}
		it, removed, err := svc.SetQuantity(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), *in.Quantity)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		if removed {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

// deleteCartItemHandler godoc
// @Summary      Remove a cart line
// @Tags         cart
// @Security     BearerAuth
// @Param        id  path  string  true  "Cart item ID"
// @Success      204
// @Failure      404  {object}  apperr.Body
// @Router       /cart/{id} [delete]
func deleteCartItemHandler(svc *cart.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id")); err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// clearCartHandler godoc
// @Summary      Empty the cart
// @Tags         cart
// @Security     BearerAuth
// @Success      204
// @Router       /cart [delete]
func clearCartHandler(svc *cart.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context(), auth.PrincipalFrom(c)); err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
