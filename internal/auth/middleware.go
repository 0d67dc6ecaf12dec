package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/httpx"
)

// Middleware resolves an optional bearer token. Requests without an
// Authorization header continue anonymously; a bad token is rejected.
func Middleware(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			httpx.Error(c, nil, apperr.New(apperr.KindAuthRequired, "malformed authorization header"))
			return
		}
		p, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			httpx.Error(c, nil, apperr.New(apperr.KindAuthRequired, "invalid or expired token"))
			return
		}
		SetPrincipal(c, p)
		c.Next()
	}
}
