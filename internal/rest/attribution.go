package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"customerIntel/business/attribution"
	"customerIntel/domain"
	"customerIntel/pkg/logger"
)

type AttributionService interface {
	Attribute(ctx context.Context, conversionEventID uint, model domain.AttributionModel) (domain.Attribution, error)
	CompareModels(ctx context.Context, start, end time.Time, tenantID *uint) (domain.ModelComparison, error)
	ChannelReport(ctx context.Context, model domain.AttributionModel, start, end time.Time, tenantID *uint) (domain.ChannelReport, error)
	AnalyzeJourney(ctx context.Context, customerID uint) (domain.CustomerJourney, error)
}

type AttributionHandler struct {
	attributionService AttributionService
	validator          *validator.Validate
	timeout            time.Duration
	now                func() time.Time
}

func NewAttributionHandler(attributionService AttributionService) *AttributionHandler {
	return &AttributionHandler{
		attributionService: attributionService,
		validator:          validator.New(),
		timeout:            handlerTimeout,
		now:                time.Now,
	}
}

// model defaults to linear when the query names none.
func model(q analyticsQuery) (domain.AttributionModel, error) {
	if q.Model == "" {
		return domain.ModelLinear, nil
	}
	return attribution.ParseModel(q.Model)
}

func (h *AttributionHandler) Conversion(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	m, err := model(q)
	if err != nil {
		return errorJSON(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.attributionService.Attribute(ctx, id, m)
	if err != nil {
		logger.Error("Failed to attribute conversion", "event_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}

func (h *AttributionHandler) Compare(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	start, end, err := q.dateRange(h.now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	comparison, err := h.attributionService.CompareModels(ctx, start, end, q.tenant())
	if err != nil {
		logger.Error("Failed to compare attribution models", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(comparison))
}

func (h *AttributionHandler) Channels(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	m, err := model(q)
	if err != nil {
		return errorJSON(c, err)
	}

	start, end, err := q.dateRange(h.now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report, err := h.attributionService.ChannelReport(ctx, m, start, end, q.tenant())
	if err != nil {
		logger.Error("Failed to build channel report", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(report))
}

func (h *AttributionHandler) Journey(c echo.Context) error {
	customerID, err := parseID(c, "customer_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	journey, err := h.attributionService.AnalyzeJourney(ctx, customerID)
	if err != nil {
		logger.Error("Failed to analyze journey", "customer_id", customerID, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(journey))
}

func (h *AttributionHandler) Models(c echo.Context) error {
	return c.JSON(http.StatusOK, fres.Response.StatusOK(attribution.Models()))
}
