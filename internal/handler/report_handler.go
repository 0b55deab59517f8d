package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/middleware"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
	"github.com/noah-isme/contravention-api/pkg/response"
)

type standingsService interface {
	Standings(ctx context.Context, filter models.StandingsFilter) ([]models.Standing, bool, error)
}

// ReportHandler exposes read-only reports.
type ReportHandler struct {
	reports standingsService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports standingsService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Standings godoc
// @Summary Points standings
// @Description Per-employee totals, tiers and open escalation counts.
// @Tags Reports
// @Produce json
// @Param department query string false "Department"
// @Param minPoints query int false "Only employees with at least this many points"
// @Param tiered query bool false "Only employees currently in a tier"
// @Success 200 {object} response.Envelope
// @Router /reports/standings [get]
func (h *ReportHandler) Standings(c *gin.Context) {
	filter := models.StandingsFilter{Department: c.Query("department")}
	if raw := c.Query("minPoints"); raw != "" {
		minPoints, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "minPoints must be an integer"))
			return
		}
		filter.MinPoints = &minPoints
	}
	tiered, err := parseQueryBool(c, "tiered")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.TierOnly = tiered

	items, hit, err := h.reports.Standings(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}
