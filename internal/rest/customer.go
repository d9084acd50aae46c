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

type CustomerService interface {
	Get(ctx context.Context, id uint) (domain.CustomerProfile, error)
	GetByUUID(ctx context.Context, uuid string) (domain.CustomerProfile, error)
	RevealPII(ctx context.Context, id uint) (domain.CustomerPII, error)
	ExportPersonalData(ctx context.Context, id uint) (domain.CustomerDataExport, error)
	Merge(ctx context.Context, sourceID, targetID uint) (domain.CustomerProfile, error)
	Anonymize(ctx context.Context, id uint) error
	RecalculateRFM(ctx context.Context, tenantID *uint) (domain.BatchResult, error)
}

type CustomerHandler struct {
	customerService CustomerService
	validator       *validator.Validate
	timeout         time.Duration
}

func NewCustomerHandler(customerService CustomerService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		validator:       validator.New(),
		timeout:         handlerTimeout,
	}
}

type MergeCustomerRequest struct {
	TargetID uint `json:"target_id" validate:"required,gt=0"`
}

func (h *CustomerHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	profile, err := h.customerService.Get(ctx, id)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(profile))
}

func (h *CustomerHandler) GetByUUID(c echo.Context) error {
	uuid := c.Param("uuid")
	if err := h.validator.Var(uuid, "required,uuid"); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid uuid"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	profile, err := h.customerService.GetByUUID(ctx, uuid)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(profile))
}

func (h *CustomerHandler) PII(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	pii, err := h.customerService.RevealPII(ctx, id)
	if err != nil {
		logger.Error("Failed to reveal customer pii", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	logger.Info("Customer pii revealed", "customer_id", id, "operator_id", c.Get("user_id"))
	return c.JSON(http.StatusOK, fres.Response.StatusOK(pii))
}

func (h *CustomerHandler) Export(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	export, err := h.customerService.ExportPersonalData(ctx, id)
	if err != nil {
		logger.Error("Failed to export customer data", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(export))
}

func (h *CustomerHandler) Merge(c echo.Context) error {
	sourceID, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	var req MergeCustomerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	target, err := h.customerService.Merge(ctx, sourceID, req.TargetID)
	if err != nil {
		logger.Error("Failed to merge customers", "source_id", sourceID, "target_id", req.TargetID, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(target))
}

func (h *CustomerHandler) Anonymize(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.customerService.Anonymize(ctx, id); err != nil {
		logger.Error("Failed to anonymize customer", "customer_id", id, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("customer anonymized"))
}

func (h *CustomerHandler) RecalculateRFM(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	result, err := h.customerService.RecalculateRFM(c.Request().Context(), q.tenant())
	if err != nil {
		logger.Error("Failed to recalculate rfm", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}
