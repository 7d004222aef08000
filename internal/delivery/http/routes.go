package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine serving the waitlist API.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), CORS(corsOrigins), h.RequestLogger())

	r.GET("/healthz", h.HealthCheck)

	api := r.Group("/api/v1", h.RequireCaller())
	{
		rt := api.Group("/riding-types")
		rt.GET("", h.ListRidingTypes)
		rt.PUT("/:id", h.SaveRidingType)
		rt.GET("/:id/entries", h.ListEntries)
		rt.POST("/:id/normalize", h.Normalize)
		rt.POST("/:id/offers", h.OfferNext)
		rt.GET("/:id/board/ws", h.BoardWebSocket)

		api.GET("/me/entries", h.ListMyEntries)

		entries := api.Group("/entries")
		entries.POST("", h.AddEntry)
		entries.GET("/:id", h.GetEntry)
		entries.POST("/:id/move", h.MoveEntry)
		entries.PUT("/:id/priority", h.SetPriority)
		entries.PUT("/:id/status", h.SetStatus)
		entries.POST("/:id/contacted", h.SetLastContacted)
		entries.PUT("/:id/notes", h.SetNotes)
	}

	return r
}
