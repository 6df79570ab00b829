package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type correlationIDKey struct{}

// AttachCorrelationID assigns a correlation id to every request lacking one
// and threads it onto the request context, mirroring the teacher's
// AttachRequestContext convention of installing request-scoped values ahead
// of any handler.
func AttachCorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-Id")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), correlationIDKey{}, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-Id", id)
		c.Next()
	}
}

func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
