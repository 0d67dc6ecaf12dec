package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/order"
)

// page reads limit and offset; bad values fall back to the repository defaults.
func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// createOrderHandler godoc
// @Summary      Place an order
// @Description  Prices are taken from the catalog; repeated product ids are merged. Stock is reserved atomically.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      order.CreateOrderRequest  true  "Order"
// @Success      201   {object}  order.Order
// @Failure      400   {object}  apperr.Body  "validation or product_not_found"
// @Failure      409   {object}  apperr.Body  "insufficient_stock"
// @Router       /orders [post]
func createOrderHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateOrderRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		o, err := svc.Create(c.Request.Context(), auth.PrincipalFrom(c), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// checkoutHandler godoc
// @Summary      Turn the cart into an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      order.CheckoutRequest  true  "Shipping"
// @Success      201   {object}  order.Order
// @Failure      400   {object}  apperr.Body
// @Failure      409   {object}  apperr.Body
// @Router       /orders/checkout [post]
func checkoutHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CheckoutRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		o, err := svc.Checkout(c.Request.Context(), auth.PrincipalFrom(c), in.ShippingAddress)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// listOrdersHandler godoc
// @Summary      List the caller's orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query  int  false  "limit (default 20, max 100)"
// @Param        offset  query  int  false  "offset"
// @Success      200  {array}  order.Order
// @Router       /orders [get]
func listOrdersHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := page(c)
		out, err := svc.ListMine(c.Request.Context(), auth.PrincipalFrom(c), limit, offset)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}

// getOrderHandler godoc
// @Summary      Get order by ID with its lines
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  order.Order
// @Failure      403  {object}  apperr.Body
// @Failure      404  {object}  apperr.Body
// @Router       /orders/{id} [get]
func getOrderHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Get(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// cancelOrderHandler godoc
// @Summary      Cancel an order and restock its items
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  order.Order
// @Failure      409  {object}  apperr.Body
// @Router       /orders/{id}/cancel [post]
func cancelOrderHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateOrderStatusHandler godoc
// @Summary      Change an order's status (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                     true  "Order ID"
// @Param        body  body      order.UpdateStatusRequest  true  "Status"
// @Success      200   {object}  order.Order
// @Failure      409   {object}  apperr.Body
// @Router       /orders/{id}/status [put]
func updateOrderStatusHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in.Status)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// adminOrdersHandler godoc
// @Summary      List all orders (admin)
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query  string  false  "filter by status"
// @Param        limit   query  int     false  "limit"
// @Param        offset  query  int     false  "offset"
// @Success      200  {array}  order.Order
// @Router       /admin/orders [get]
func adminOrdersHandler(svc *order.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := page(c)
		out, err := svc.ListAll(c.Request.Context(), auth.PrincipalFrom(c), order.Status(c.Query("status")), limit, offset)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}
