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

type LtvService interface {
	Predict(ctx context.Context, customerID uint) (domain.LtvPrediction, error)
	HighPotentialCustomers(ctx context.Context, limit int, tenantID *uint) ([]domain.LtvPrediction, error)
	BySegment(ctx context.Context, tenantID *uint) ([]domain.LtvSegment, error)
	ByCohort(ctx context.Context, cohortType domain.CohortType, cohortsBack int, tenantID *uint) ([]domain.LtvCohort, error)
	TierDistribution(ctx context.Context, tenantID *uint) ([]domain.TierBucket, error)
	UpdatePredictedLtv(ctx context.Context, tenantID *uint) (domain.BatchResult, error)
}

type LtvHandler struct {
	ltvService LtvService
	validator  *validator.Validate
	timeout    time.Duration
}

func NewLtvHandler(ltvService LtvService) *LtvHandler {
	return &LtvHandler{
		ltvService: ltvService,
		validator:  validator.New(),
		timeout:    handlerTimeout,
	}
}

func (h *LtvHandler) Predict(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	prediction, err := h.ltvService.Predict(ctx, id)
	if err != nil {
		logger.Error("Failed to predict ltv", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(prediction))
}

func (h *LtvHandler) HighPotential(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	customers, err := h.ltvService.HighPotentialCustomers(ctx, q.limit(), q.tenant())
	if err != nil {
		logger.Error("Failed to list high-potential customers", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(customers))
}

func (h *LtvHandler) Segments(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	segments, err := h.ltvService.BySegment(ctx, q.tenant())
	if err != nil {
		logger.Error("Failed to load ltv by segment", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(segments))
}

func (h *LtvHandler) Cohorts(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	cohorts, err := h.ltvService.ByCohort(ctx, domain.ParseCohortType(q.CohortType), q.CohortsBack, q.tenant())
	if err != nil {
		logger.Error("Failed to load ltv by cohort", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(cohorts))
}

func (h *LtvHandler) Tiers(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	tiers, err := h.ltvService.TierDistribution(ctx, q.tenant())
	if err != nil {
		logger.Error("Failed to load ltv tiers", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(tiers))
}

func (h *LtvHandler) Recalculate(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	result, err := h.ltvService.UpdatePredictedLtv(c.Request().Context(), q.tenant())
	if err != nil {
		logger.Error("Failed to update predicted ltv", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}
