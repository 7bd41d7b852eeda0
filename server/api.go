package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Kalantar81/window-counter/pkg/storage"
)

// LocationResponse is the body returned by the location submission
// endpoint. A missing target is a normal outcome, never an HTTP error.
type LocationResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TargetClient string `json:"targetClient,omitempty"`
}

// handleState returns the registry snapshot in the same shape a
// broadcast carries.
func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": s.hub.Snapshot()})
}

// handleLocation routes an opaque location payload to a single eligible
// client.
func (s *Server) handleLocation(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, LocationResponse{
			Success: false,
			Message: "invalid location payload",
		})
		return
	}

	targetID, delivered := s.hub.RouteLocation(body)
	if !delivered {
		c.JSON(http.StatusOK, LocationResponse{
			Success: false,
			Message: fmt.Sprintf("No visible clients found on %s tab", s.config.Routing.TargetTab),
		})
		return
	}

	c.JSON(http.StatusOK, LocationResponse{
		Success:      true,
		Message:      fmt.Sprintf("Location data sent to client %s", targetID),
		TargetClient: targetID,
	})
}

// handleHistory returns recent events from the history store
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history not available"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	events, err := s.store.GetRecentEvents(limit)
	if err != nil {
		s.log.ErrorWithErr("failed to read event history", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read event history"})
		return
	}
	if events == nil {
		events = []*storage.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// handleHealth reports server liveness and resource usage
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.GetHealth(s.hub.ClientCount()))
}
