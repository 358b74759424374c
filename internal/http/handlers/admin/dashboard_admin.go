package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/payment/mpesa"
	"github.com/dukani-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetDashboardOverview order, payment and stock counters for a range
func (h *Handler) GetDashboardOverview(c *gin.Context) {
	input, err := parseDashboardQuery(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid dashboard query", err)
		return
	}

	data, err := h.DashboardService.GetOverview(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrDashboardRangeInvalid) {
			respondError(c, response.CodeBadRequest, "dashboard range is invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to load dashboard", err)
		return
	}
	response.Success(c, data)
}

func parseDashboardQuery(c *gin.Context) (service.DashboardQueryInput, error) {
	from, err := parseDashboardTime(c.Query("from"), false)
	if err != nil {
		return service.DashboardQueryInput{}, err
	}
	to, err := parseDashboardTime(c.Query("to"), true)
	if err != nil {
		return service.DashboardQueryInput{}, err
	}

	forceRefresh := false
	if raw := strings.TrimSpace(c.Query("force_refresh")); raw != "" {
		forceRefresh, err = strconv.ParseBool(raw)
		if err != nil {
			return service.DashboardQueryInput{}, err
		}
	}

	return service.DashboardQueryInput{
		Range:        strings.TrimSpace(c.DefaultQuery("range", "7d")),
		From:         from,
		To:           to,
		ForceRefresh: forceRefresh,
	}, nil
}

// parseDashboardTime accepts RFC3339 or a bare Nairobi date; a bare end date covers the whole day
func parseDashboardTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, mpesa.EAT)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Second)
	}
	return &parsed, nil
}
