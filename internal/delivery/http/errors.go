package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/vogiaan1904/farm-waitlist/internal/delivery"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	resp "github.com/vogiaan1904/farm-waitlist/pkg/response"
)

func (h *Handler) respondError(c *gin.Context, err error) {
	if _, ok := delivery.LookupError(err); !ok {
		h.l.Errorf(c.Request.Context(), "delivery.http.%s: %v", c.HandlerName(), err)
	}
	status, body := resp.ParseHTTPError(delivery.HTTPError(err))
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) respondBindError(c *gin.Context, err error) {
	h.respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidArgument, err))
}
