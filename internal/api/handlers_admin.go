package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleRunSweep triggers one sweep-and-consolidate pass immediately,
// outside the scheduler's interval.
func (s *Server) handleRunSweep(c *gin.Context) {
	report, err := s.scheduler.RunNow(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("manual sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": s.scheduler.IsRunning(),
	})
}
