package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lending-fund-api/internal/auth"
	"lending-fund-api/internal/balance"
	"lending-fund-api/internal/currency"
	"lending-fund-api/internal/database"
)

func (s *Server) handleListCurrencies(c *gin.Context) {
	currencies, err := s.currencies.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list currencies"})
		return
	}
	if currencies == nil {
		currencies = []*database.Currency{}
	}
	c.JSON(http.StatusOK, currencies)
}

func (s *Server) handleConsolidatedBalances(c *gin.Context) {
	views, err := s.balances.Consolidated(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balances"})
		return
	}
	if views == nil {
		views = []*database.BalanceView{}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleOwnerBalances(c *gin.Context) {
	balances, err := s.balances.OwnerBalances(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balances"})
		return
	}
	if balances == nil {
		balances = []*database.OwnerBalance{}
	}
	c.JSON(http.StatusOK, balances)
}

func (s *Server) handleLatestBalance(c *gin.Context) {
	cur, ok := s.resolveCurrencyParam(c)
	if !ok {
		return
	}

	view, err := s.balances.Latest(c.Request.Context(), cur.ID)
	if err != nil {
		if errors.Is(err, balance.ErrNoBalance) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no balance recorded for " + cur.Code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleBalanceHistory(c *gin.Context) {
	cur, ok := s.resolveCurrencyParam(c)
	if !ok {
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = parsed
	}

	views, err := s.balances.History(c.Request.Context(), cur.ID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance history"})
		return
	}
	if views == nil {
		views = []*database.BalanceView{}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) resolveCurrencyParam(c *gin.Context) (*database.Currency, bool) {
	cur, err := s.currencies.Resolve(c.Request.Context(), c.Param("currency"))
	if err != nil {
		if currency.IsUnknown(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown currency"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve currency"})
		return nil, false
	}
	return cur, true
}
