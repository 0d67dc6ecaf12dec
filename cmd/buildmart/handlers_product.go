package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/product"
)

// listProductsHandler godoc
// @Summary      List active products
// @Description  Without filters returns every active product, newest first. search matches the name case-insensitively.
// @Tags         products
// @Produce      json
// @Param        search    query  string  false  "substring of the product name"
// @Param        category  query  string  false  "exact category"
// @Success      200  {object}  product.ListResponse
// @Router       /products [get]
func listProductsHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("search"))
		category := strings.TrimSpace(c.Query("category"))

		var (
			items []product.Product
			err   error
		)
		if q == "" && category == "" {
			items, err = svc.ListActive(c.Request.Context())
		} else {
			items, err = svc.Search(c.Request.Context(), q, category)
		}
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q, Category: category, Items: items})
	}
}

// getProductHandler godoc
// @Summary      Get product by ID
// @Tags         products
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  product.Product
// @Failure      404  {object}  apperr.Body
// @Router       /products/{id} [get]
func getProductHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// sellerProductsHandler godoc
// @Summary      List the caller's products, including inactive ones
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  product.ListResponse
// @Router       /seller/products [get]
func sellerProductsHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.ListMine(c.Request.Context(), auth.PrincipalFrom(c))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{Items: items})
	}
}

// createProductHandler godoc
// @Summary      Create product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      product.CreateProductRequest  true  "Product"
// @Success      201   {object}  product.Product
// @Failure      400   {object}  apperr.Body
// @Failure      403   {object}  apperr.Body
// @Router       /products [post]
func createProductHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.CreateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		p, err := svc.Create(c.Request.Context(), auth.PrincipalFrom(c), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// updateProductHandler godoc
// @Summary      Partially update product
// @Description  Omitted fields keep their value.
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                        true  "Product ID"
// @Param        body  body      product.UpdateProductRequest  true  "Fields"
// @Success      200   {object}  product.Product
// @Failure      403   {object}  apperr.Body
// @Failure      404   {object}  apperr.Body
// @Router       /products/{id} [put]
func updateProductHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in product.UpdateProductRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		p, err := svc.Update(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id"), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// deleteProductHandler godoc
// @Summary      Delete product
// @Tags         products
// @Security     BearerAuth
// @Param        id   path  string  true  "Product ID"
// @Success      204
// @Failure      403  {object}  apperr.Body
// @Failure      404  {object}  apperr.Body
// @Router       /products/{id} [delete]
func deleteProductHandler(svc *product.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), auth.PrincipalFrom(c), c.Param("id")); err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
