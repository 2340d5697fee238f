package middleware

import (
	"context"
	"net/http"
	"strings"

	"cute-chat/internal/domain/user"
	"cute-chat/internal/transport/httpdto"
	"cute-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const viewerKey = "viewer"

// ViewerMiddleware reads the host-supplied viewer from the query string or the
// X-Viewer-* headers. Authentication happens in front of this service.
func ViewerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := user.Ref{
			ID:       param(c, "viewer_id", "X-Viewer-Id"),
			Name:     param(c, "name", "X-Viewer-Name"),
			Username: param(c, "username", "X-Viewer-Username"),
			Avatar:   param(c, "avatar", "X-Viewer-Avatar"),
		}
		if viewer.ID == "" {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("viewer_id is required", "INVALID_REQUEST"))
			c.Abort()
			return
		}

		c.Set(viewerKey, viewer)
		ctx := context.WithValue(c.Request.Context(), logger.ViewerIdKey, viewer.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Viewer returns the viewer stored by ViewerMiddleware.
func Viewer(c *gin.Context) (user.Ref, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return user.Ref{}, false
	}
	viewer, ok := v.(user.Ref)
	return viewer, ok
}

func ViewerID(c *gin.Context) string {
	viewer, _ := Viewer(c)
	return viewer.ID
}

func param(c *gin.Context, query, header string) string {
	if v := strings.TrimSpace(c.Query(query)); v != "" {
		return v
	}
	return strings.TrimSpace(c.GetHeader(header))
}
