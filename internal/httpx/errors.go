package httpx

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/apperr"
)

// Error writes err as the JSON error envelope and aborts the chain.
// Internal errors are logged with their cause; clients only see the kind.
func Error(c *gin.Context, log *zap.Logger, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal && log != nil {
		log.Error("request failed",
			zap.String("rid", RID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(e.Err),
		)
	}
	c.AbortWithStatusJSON(e.Status(), e.Body())
}

// BadJSON reports a body that could not be decoded.
func BadJSON(c *gin.Context) {
	Error(c, nil, apperr.Validation("invalid json"))
}
