package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"staysearch/services"
	"staysearch/store"
)

type SessionResponse struct {
	SessionID string               `json:"session_id"`
	Criteria  store.SearchCriteria `json:"criteria"`
}

type SetDatesRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

type SetPassengersRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

type SetAgeRequest struct {
	Index int  `json:"index"`
	Age   *int `json:"age" binding:"required"`
}

// CreateSessionHandler opens a fresh criteria session: one passenger with an
// unset age, no dates.
func (h *Handler) CreateSessionHandler(c *gin.Context) {
	s := h.store.Create()
	c.JSON(http.StatusCreated, SessionResponse{
		SessionID: s.ID,
		Criteria:  s.Snapshot(),
	})
}

// SetDatesHandler stores the trip date range. Dates travel as YYYY/MM/DD,
// the format shared with the frontend and both upstreams.
func (h *Handler) SetDatesHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req SetDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if _, err := time.Parse(services.DateLayout, req.StartDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date format. Use YYYY/MM/DD"})
		return
	}
	if _, err := time.Parse(services.DateLayout, req.EndDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date format. Use YYYY/MM/DD"})
		return
	}

	s.SetDates(req.StartDate, req.EndDate)
	c.JSON(http.StatusOK, SessionResponse{SessionID: s.ID, Criteria: s.Snapshot()})
}

// SetPassengersHandler resizes the passenger list. New slots start with an
// unset age; extras are dropped.
func (h *Handler) SetPassengersHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req SetPassengersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	s.SetPassengerCount(req.Count)
	c.JSON(http.StatusOK, SessionResponse{SessionID: s.ID, Criteria: s.Snapshot()})
}

// SetAgeHandler sets the age of one passenger slot.
func (h *Handler) SetAgeHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req SetAgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if !s.SetAge(req.Index, *req.Age) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passenger index out of range"})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: s.ID, Criteria: s.Snapshot()})
}
