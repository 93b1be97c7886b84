package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lending-fund-api/internal/auth"
	"lending-fund-api/internal/currency"
	"lending-fund-api/internal/database"
	"lending-fund-api/internal/instrument"
)

func (s *Server) handleCreateDeposit(c *gin.Context) {
	s.createInstrument(c, database.RoleDeposit)
}

func (s *Server) handleCreateLoan(c *gin.Context) {
	s.createInstrument(c, database.RoleLoan)
}

func (s *Server) createInstrument(c *gin.Context, role string) {
	var req instrument.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Role = role
	req.OwnerID = auth.GetUserID(c)

	view, err := s.instruments.Create(c.Request.Context(), req)
	if err != nil {
		s.writeInstrumentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) handleListDeposits(c *gin.Context) {
	s.listInstruments(c, database.RoleDeposit)
}

func (s *Server) handleListLoans(c *gin.Context) {
	s.listInstruments(c, database.RoleLoan)
}

func (s *Server) listInstruments(c *gin.Context, role string) {
	ownerID := auth.GetUserID(c)

	var (
		views []*database.InstrumentView
		err   error
	)
	if c.Query("active") == "true" {
		views, err = s.instruments.ListActive(c.Request.Context(), role, ownerID)
	} else {
		views, err = s.instruments.List(c.Request.Context(), role, ownerID)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list instruments"})
		return
	}
	if views == nil {
		views = []*database.InstrumentView{}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetInstrument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := s.instruments.GetByID(c.Request.Context(), id)
	if err != nil {
		s.writeInstrumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGetSchedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	obligations, err := s.instruments.Obligations(c.Request.Context(), id)
	if err != nil {
		s.writeInstrumentError(c, err)
		return
	}
	if obligations == nil {
		obligations = []*database.PaymentObligation{}
	}
	c.JSON(http.StatusOK, obligations)
}

func (s *Server) handleCancelInstrument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := s.instruments.Cancel(c.Request.Context(), id); err != nil {
		s.writeInstrumentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "instrument cancelled"})
}

func (s *Server) writeInstrumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, instrument.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "instrument not found"})
	case errors.Is(err, instrument.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, instrument.ErrInvalidTerm),
		currency.IsUnknown(err),
		currency.IsInactive(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("instrument operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instrument id"})
		return 0, false
	}
	return id, true
}
