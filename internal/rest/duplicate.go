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

type DuplicateService interface {
	FindForCustomer(ctx context.Context, customerID uint, threshold float64) ([]domain.DuplicateCandidate, error)
	FindAll(ctx context.Context, threshold float64, limit int) ([]domain.DuplicateGroup, error)
	Statistics(ctx context.Context) (domain.DuplicateStats, error)
	AutoMerge(ctx context.Context, limit int) (domain.AutoMergeResult, error)
	Dismiss(ctx context.Context, matchID uint) (domain.DuplicateMatch, error)
}

type DuplicateHandler struct {
	duplicateService DuplicateService
	validator        *validator.Validate
	timeout          time.Duration
}

func NewDuplicateHandler(duplicateService DuplicateService) *DuplicateHandler {
	return &DuplicateHandler{
		duplicateService: duplicateService,
		validator:        validator.New(),
		timeout:          handlerTimeout,
	}
}

func (h *DuplicateHandler) ForCustomer(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	candidates, err := h.duplicateService.FindForCustomer(ctx, id, q.Threshold)
	if err != nil {
		logger.Error("Failed to find duplicates", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(candidates))
}

func (h *DuplicateHandler) Groups(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	groups, err := h.duplicateService.FindAll(ctx, q.Threshold, q.limit())
	if err != nil {
		logger.Error("Failed to find duplicate groups", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(groups))
}

func (h *DuplicateHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	stats, err := h.duplicateService.Statistics(ctx)
	if err != nil {
		logger.Error("Failed to load duplicate statistics", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

func (h *DuplicateHandler) AutoMerge(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	result, err := h.duplicateService.AutoMerge(c.Request().Context(), q.limit())
	if err != nil {
		logger.Error("Failed to auto-merge duplicates", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}

func (h *DuplicateHandler) Dismiss(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	match, err := h.duplicateService.Dismiss(ctx, id)
	if err != nil {
		logger.Error("Failed to dismiss duplicate match", "match_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(match))
}
