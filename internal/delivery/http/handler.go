package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/service"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

type Handler struct {
	svc      service.WaitlistService
	l        logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc service.WaitlistService, l logger.Logger) *Handler {
	return &Handler{
		svc: svc,
		l:   l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the gateway in front of the service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "waitlist-service",
	})
}

func (h *Handler) ListRidingTypes(c *gin.Context) {
	rts, err := h.svc.ListRidingTypes(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"riding_types": rts})
}

func (h *Handler) SaveRidingType(c *gin.Context) {
	var in service.SaveRidingTypeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}
	in.ID = c.Param("id")

	rt, err := h.svc.SaveRidingType(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rt)
}

// ListEntries accepts status as repeated or comma separated query values.
func (h *Handler) ListEntries(c *gin.Context) {
	in := service.ListEntriesInput{RidingTypeID: c.Param("id")}
	for _, raw := range c.QueryArray("status") {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				in.Statuses = append(in.Statuses, models.EntryStatus(st))
			}
		}
	}
	if day, ok := c.GetQuery("day"); ok {
		in.RequestedDay = &day
	}

	b, err := h.svc.ListEntriesByType(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) Normalize(c *gin.Context) {
	rtID := c.Param("id")
	v, err := h.svc.Normalize(c.Request.Context(), callerFrom(c), rtID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"riding_type_id": rtID, "version": v})
}

func (h *Handler) OfferNext(c *gin.Context) {
	var in struct {
		OccurrenceID string  `json:"occurrence_id" binding:"required"`
		RequestedDay *string `json:"requested_day"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	e, err := h.svc.OfferNext(c.Request.Context(), callerFrom(c), service.OfferNextInput{
		RidingTypeID: c.Param("id"),
		OccurrenceID: in.OccurrenceID,
		RequestedDay: in.RequestedDay,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListMyEntries(c *gin.Context) {
	es, err := h.svc.ListMyEntries(c.Request.Context(), callerFrom(c), c.Query("parent_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": es})
}

func (h *Handler) AddEntry(c *gin.Context) {
	var in service.AddEntryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	e, err := h.svc.AddEntry(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEntry(c *gin.Context) {
	e, err := h.svc.GetEntry(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) MoveEntry(c *gin.Context) {
	var in service.MoveEntryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}
	in.EntryID = c.Param("id")

	out, err := h.svc.MoveEntry(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SetPriority(c *gin.Context) {
	var in struct {
		Priority *int `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	e, err := h.svc.SetPriority(c.Request.Context(), callerFrom(c), c.Param("id"), *in.Priority)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) SetStatus(c *gin.Context) {
	var in service.SetStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}
	in.EntryID = c.Param("id")

	e, err := h.svc.SetStatus(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) SetLastContacted(c *gin.Context) {
	e, err := h.svc.SetLastContacted(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) SetNotes(c *gin.Context) {
	var in struct {
		Notes *string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondBindError(c, err)
		return
	}

	e, err := h.svc.SetNotes(c.Request.Context(), callerFrom(c), c.Param("id"), *in.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
