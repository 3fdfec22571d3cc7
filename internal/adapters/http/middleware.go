package httpadapter

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PabloGalante/twogether/internal/observability"
)

const headerRequestID = "X-Request-ID"

// withRequestLogging assigns a request id (keeping the caller's one if sent)
// and logs every request once it is served.
func withRequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		ctx := observability.WithRequestID(c.Request.Context(), reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		observability.LoggerFromContext(ctx).Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).String(),
		)
	}
}

// withCORS leaves every origin open; partners open the links from anywhere.
func withCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	})
}
