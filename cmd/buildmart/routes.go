package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/MikeMC777/buildmart/docs"
	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/cart"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/order"
	"github.com/MikeMC777/buildmart/internal/product"
	"github.com/MikeMC777/buildmart/internal/project"
	"github.com/MikeMC777/buildmart/internal/stats"
	"github.com/MikeMC777/buildmart/internal/user"
)

type services struct {
	products *product.Service
	carts    *cart.Service
	orders   *order.Service
	projects *project.Service
	users    *user.Service
	stats    *stats.Service
	tokens   *auth.Tokens

	loginLimiter   *httpx.IPRateLimiter
	trustedProxies []string
	// Non-empty when uploads are kept on local disk.
	uploadDir string
}

func newRouter(s services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.trustedProxies); err != nil {
		log.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(httpx.RequestID(), httpx.Logger(log), httpx.Recovery(log), auth.Middleware(s.tokens))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if s.uploadDir != "" {
		r.Static("/uploads", s.uploadDir)
	}

	login := loginHandler(s.users, log)
	if s.loginLimiter != nil {
		r.POST("/auth/login", s.loginLimiter.Middleware(), login)
	} else {
		r.POST("/auth/login", login)
	}
	r.POST("/auth/register", registerHandler(s.users, log))
	r.GET("/me", meHandler(s.users, log))
	r.PUT("/me", updateMeHandler(s.users, log))

	r.GET("/products", listProductsHandler(s.products, log))
	r.GET("/products/:id", getProductHandler(s.products, log))
	r.POST("/products", createProductHandler(s.products, log))
	r.PUT("/products/:id", updateProductHandler(s.products, log))
	r.DELETE("/products/:id", deleteProductHandler(s.products, log))
	r.GET("/seller/products", sellerProductsHandler(s.products, log))

	r.GET("/cart", getCartHandler(s.carts, log))
	r.POST("/cart", addCartItemHandler(s.carts, log))
	r.DELETE("/cart", clearCartHandler(s.carts, log))
	r.PUT("/cart/:id", setCartItemHandler(s.carts, log))
	r.DELETE("/cart/:id", deleteCartItemHandler(s.carts, log))

	r.POST("/orders", createOrderHandler(s.orders, log))
	r.POST("/orders/checkout", checkoutHandler(s.orders, log))
	r.GET("/orders", listOrdersHandler(s.orders, log))
	r.GET("/orders/:id", getOrderHandler(s.orders, log))
	r.POST("/orders/:id/cancel", cancelOrderHandler(s.orders, log))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(s.orders, log))

	admin := r.Group("/admin")
	admin.GET("/orders", adminOrdersHandler(s.orders, log))
	admin.GET("/stats", statsHandler(s.stats, log))

	p := r.Group("/projects")
	p.GET("", listProjectsHandler(s.projects, log))
	p.POST("", createProjectHandler(s.projects, log))
	p.GET("/:id", getProjectHandler(s.projects, log))
	p.PUT("/:id", updateProjectHandler(s.projects, log))
	p.DELETE("/:id", deleteProjectHandler(s.projects, log))
	p.GET("/:id/summary", projectSummaryHandler(s.projects, log))
	p.GET("/:id/milestones", listMilestonesHandler(s.projects, log))
	p.POST("/:id/milestones", addMilestoneHandler(s.projects, log))
	p.PUT("/:id/milestones/:mid", updateMilestoneHandler(s.projects, log))
	p.GET("/:id/inventory", listInventoryHandler(s.projects, log))
	p.POST("/:id/inventory", addInventoryHandler(s.projects, log))
	p.PUT("/:id/inventory/:iid", updateInventoryHandler(s.projects, log))
	p.GET("/:id/expenses", listExpensesHandler(s.projects, log))
	p.POST("/:id/expenses", addExpenseHandler(s.projects, log))
	p.GET("/:id/images", listImagesHandler(s.projects, log))
	p.POST("/:id/images", uploadImageHandler(s.projects, log))

	return r
}
