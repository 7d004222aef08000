package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery"
	"github.com/vogiaan1904/farm-waitlist/internal/models"
)

const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderCallerID   = "X-Caller-ID"
	HeaderCallerRole = "X-Caller-Role"
	HeaderRequestID  = "X-Request-ID"

	callerKey = "caller"
)

// RequestLogger puts request fields into the request context so every log
// line of the request carries them, then logs the outcome.
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)

		ctx := h.l.With(c.Request.Context(),
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
		)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		h.l.Infof(ctx, "%s %s %d in %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// RequireCaller reads the gateway's identity headers.
func (h *Handler) RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := delivery.ParseCaller(
			c.GetHeader(HeaderTenantID),
			c.GetHeader(HeaderCallerID),
			c.GetHeader(HeaderCallerRole),
		)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(h.l.With(c.Request.Context(),
			"tenant_id", caller.TenantID,
			"caller_id", caller.UserID,
		))
		c.Next()
	}
}

func callerFrom(c *gin.Context) models.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(models.Caller)
	return caller
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type",
			HeaderTenantID, HeaderCallerID, HeaderCallerRole, HeaderRequestID,
		},
		ExposeHeaders: []string{HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
