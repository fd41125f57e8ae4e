package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ForecastHandler struct {
	service        *service.ForecastService
	defaultHorizon domain.Horizon
}

// NewForecastHandler serves forecasts; an unsupported default horizon falls back to 30 days.
func NewForecastHandler(service *service.ForecastService, defaultHorizonDays int) *ForecastHandler {
	horizon, err := domain.ParseHorizon(defaultHorizonDays)
	if err != nil {
		horizon = domain.Horizon30
	}
	return &ForecastHandler{service: service, defaultHorizon: horizon}
}

func (h *ForecastHandler) parseHorizon(c *gin.Context) (domain.Horizon, bool) {
	raw := strings.TrimSpace(c.Query("horizon"))
	if raw == "" {
		return h.defaultHorizon, true
	}

	days, err := strconv.Atoi(raw)
	if err == nil {
		var horizon domain.Horizon
		if horizon, err = domain.ParseHorizon(days); err == nil {
			return horizon, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid horizon", "details": "horizon must be 30, 60 or 90"})
	return 0, false
}

func (h *ForecastHandler) ownerID(c *gin.Context) (string, bool) {
	owner := strings.TrimSpace(c.Param("owner"))
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner is required"})
		return "", false
	}
	return owner, true
}

// respondError maps engine errors onto status codes: a bad horizon is the caller's fault,
// an unreadable collaborator is an upstream failure.
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidHorizon):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDataFetch):
		status = http.StatusBadGateway
	}
	log.Error().Err(err).Str("path", c.FullPath()).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func (h *ForecastHandler) GetForecast(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}
	horizon, ok := h.parseHorizon(c)
	if !ok {
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), owner, horizon)
	if err != nil {
		respondError(c, "failed to generate forecast", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *ForecastHandler) GetSummary(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), owner)
	if err != nil {
		respondError(c, "failed to fetch forecast summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ForecastHandler) InvalidateSummary(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}

	if err := h.service.InvalidateSummary(c.Request.Context(), owner); err != nil {
		respondError(c, "failed to invalidate forecast summary", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ForecastHandler) GetPriorities(c *gin.Context) {
	owner, ok := h.ownerID(c)
	if !ok {
		return
	}
	horizon, ok := h.parseHorizon(c)
	if !ok {
		return
	}

	buckets, err := h.service.GetPriorities(c.Request.Context(), owner, horizon)
	if err != nil {
		respondError(c, "failed to fetch forecast priorities", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"owner_id":     owner,
		"horizon_days": horizon.Days(),
		"priorities":   buckets,
	})
}
