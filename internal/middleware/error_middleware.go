package middleware

import (
	"net/http"

	"cute-chat/internal/transport/httpdto"
	"cute-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler logs errors attached to the context and, when the handler has not
// answered yet, replies with an error envelope.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Ctx(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		if c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
