package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"staysearch/services"
	"staysearch/store"
)

// Handler wires the criteria store, the two upstream clients, and the quote
// aggregator into the HTTP surface. Everything is injected; there are no
// package-level singletons.
type Handler struct {
	store        *store.Store
	availability *services.AvailabilityClient
	aggregator   *services.Aggregator
}

// New creates a Handler.
func New(st *store.Store, availability *services.AvailabilityClient, aggregator *services.Aggregator) *Handler {
	return &Handler{
		store:        st,
		availability: availability,
		aggregator:   aggregator,
	}
}

// Register attaches all routes under the given group.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.GET("/health", h.HealthHandler)
	api.POST("/sessions", h.CreateSessionHandler)
	api.PUT("/sessions/:id/dates", h.SetDatesHandler)
	api.PUT("/sessions/:id/passengers", h.SetPassengersHandler)
	api.PUT("/sessions/:id/ages", h.SetAgeHandler)
	api.POST("/sessions/:id/search", h.SearchHandler)
	api.GET("/sessions/:id/offers", h.OffersHandler)
	api.GET("/sessions/:id/summary", h.SummaryHandler)
}

// HealthHandler reports service liveness.
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "StaySearch API",
		"sessions": h.store.Len(),
	})
}

// session resolves the :id path parameter, replying 404 when the session is
// unknown or expired.
func (h *Handler) session(c *gin.Context) *store.Session {
	s := h.store.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil
	}
	return s
}
