package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/auth"
	"github.com/MikeMC777/buildmart/internal/httpx"
	"github.com/MikeMC777/buildmart/internal/stats"
	"github.com/MikeMC777/buildmart/internal/user"
)

// registerHandler godoc
// @Summary      Create an account
// @Description  role is buyer (default), seller or client.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      user.RegisterRequest  true  "Account"
// @Success      201   {object}  user.User
// @Failure      400   {object}  apperr.Body
// @Failure      409   {object}  apperr.Body
// @Router       /auth/register [post]
func registerHandler(svc *user.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.RegisterRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		u, err := svc.Register(c.Request.Context(), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// loginHandler godoc
// @Summary      Exchange credentials for a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      user.LoginRequest  true  "Credentials"
// @Success      200   {object}  user.LoginResponse
// @Failure      401   {object}  apperr.Body
// @Failure      429   {object}  apperr.Body
// @Router       /auth/login [post]
func loginHandler(svc *user.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.LoginRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		res, err := svc.Login(c.Request.Context(), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// meHandler godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  user.User
// @Failure      401  {object}  apperr.Body
// @Router       /me [get]
func meHandler(svc *user.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Me(c.Request.Context(), auth.PrincipalFrom(c))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// updateMeHandler godoc
// @Summary      Update the current user's profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      user.UpdateRequest  true  "Fields"
// @Success      200   {object}  user.User
// @Failure      409   {object}  apperr.Body
// @Router       /me [put]
func updateMeHandler(svc *user.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in user.UpdateRequest
		if err := c.ShouldBindJSON(&in); err != nil {
			httpx.BadJSON(c)
			return
		}
		u, err := svc.UpdateMe(c.Request.Context(), auth.PrincipalFrom(c), in)
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// statsHandler godoc
// @Summary      Dashboard figures (admin)
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  stats.Stats
// @Failure      403  {object}  apperr.Body
// @Router       /admin/stats [get]
func statsHandler(svc *stats.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Get(c.Request.Context(), auth.PrincipalFrom(c))
		if err != nil {
			httpx.Error(c, log, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
