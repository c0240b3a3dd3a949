package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"staysearch/services"
	"staysearch/store"
)

type SearchRequest struct {
	Destination string `json:"destination"`
}

type SearchResponse struct {
	SessionID string               `json:"session_id"`
	Criteria  store.SearchCriteria `json:"criteria"`
}

// SearchHandler validates the session's criteria against the selected
// destination and, on success, captures the canonical snapshot the results
// view will read. Validation failures return the complete ordered message
// list; the frontend shows the first. Nothing here touches the network.
func (h *Handler) SearchHandler(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	req.Destination = strings.ToUpper(strings.TrimSpace(req.Destination))

	criteria := s.Snapshot()
	if errs := services.ValidateCriteria(req.Destination, criteria); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}

	snap := s.Submit(req.Destination)
	log.Printf("✅ Search submitted: session=%s destination=%s %s-%s passengers=%d",
		s.ID, snap.DestinationCode, snap.StartDate, snap.EndDate, snap.PassengerCount())

	c.JSON(http.StatusOK, SearchResponse{SessionID: s.ID, Criteria: snap})
}
