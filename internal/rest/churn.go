package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
)

type ChurnService interface {
	Predict(ctx context.Context, customerID uint) (domain.ChurnPrediction, error)
	AtRiskCustomers(ctx context.Context, minLevel domain.RiskLevel, limit int, tenantID *uint) ([]domain.ChurnPrediction, error)
	StatsBySegment(ctx context.Context, tenantID *uint) ([]domain.ChurnSegmentStats, error)
	CohortAnalysis(ctx context.Context, cohortType domain.CohortType, cohortsBack int, tenantID *uint) ([]domain.ChurnCohort, error)
	Dashboard(ctx context.Context, tenantID *uint) (domain.ChurnDashboard, error)
	UpdateChurnScores(ctx context.Context, tenantID *uint) (domain.BatchResult, error)
}

type ChurnHandler struct {
	churnService ChurnService
	validator    *validator.Validate
	timeout      time.Duration
}

func NewChurnHandler(churnService ChurnService) *ChurnHandler {
	return &ChurnHandler{
		churnService: churnService,
		validator:    validator.New(),
		timeout:      handlerTimeout,
	}
}

func (h *ChurnHandler) Predict(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	prediction, err := h.churnService.Predict(ctx, id)
	if err != nil {
		logger.Error("Failed to predict churn", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(prediction))
}

func (h *ChurnHandler) AtRisk(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	minLevel := domain.RiskHigh
	if q.RiskLevel != "" {
		minLevel, _ = domain.ParseRiskLevel(q.RiskLevel)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	customers, err := h.churnService.AtRiskCustomers(ctx, minLevel, q.limit(), q.tenant())
	if err != nil {
		logger.Error("Failed to list at-risk customers", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(customers))
}

func (h *ChurnHandler) Segments(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	stats, err := h.churnService.StatsBySegment(ctx, q.tenant())
	if err != nil {
		logger.Error("Failed to load churn segment stats", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

func (h *ChurnHandler) Cohorts(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cohorts, err := h.churnService.CohortAnalysis(ctx, domain.ParseCohortType(q.CohortType), q.CohortsBack, q.tenant())
	if err != nil {
		logger.Error("Failed to analyze churn cohorts", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(cohorts))
}

func (h *ChurnHandler) Dashboard(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	dashboard, err := h.churnService.Dashboard(ctx, q.tenant())
	if err != nil {
		logger.Error("Failed to build churn dashboard", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(dashboard))
}

// Recalculate runs the scoring pass inline; it is not bound by the handler timeout.
func (h *ChurnHandler) Recalculate(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	result, err := h.churnService.UpdateChurnScores(c.Request().Context(), q.tenant())
	if err != nil {
		logger.Error("Failed to update churn scores", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}
