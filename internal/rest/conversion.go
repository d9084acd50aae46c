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

type ConversionService interface {
	ProcessPendingConversions(ctx context.Context) (domain.ConversionRunResult, error)
	ConfirmConversion(ctx context.Context, conversionID, apiResponse string) (domain.Conversion, error)
	FailConversion(ctx context.Context, conversionID, reason string) (domain.Conversion, error)
}

type ConversionHandler struct {
	conversionService ConversionService
	validator         *validator.Validate
	timeout           time.Duration
}

func NewConversionHandler(conversionService ConversionService) *ConversionHandler {
	return &ConversionHandler{
		conversionService: conversionService,
		validator:         validator.New(),
		timeout:           handlerTimeout,
	}
}

type ConfirmConversionRequest struct {
	Response string `json:"response" validate:"max=4096"`
}

type FailConversionRequest struct {
	Reason string `json:"reason" validate:"required,max=1024"`
}

func (h *ConversionHandler) Process(c echo.Context) error {
	result, err := h.conversionService.ProcessPendingConversions(c.Request().Context())
	if err != nil {
		logger.Error("Failed to process pending conversions", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}

func (h *ConversionHandler) Confirm(c echo.Context) error {
	conversionID := c.Param("conversion_id")

	var req ConfirmConversionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	conversion, err := h.conversionService.ConfirmConversion(ctx, conversionID, req.Response)
	if err != nil {
		logger.Error("Failed to confirm conversion", "conversion_id", conversionID, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(conversion))
}

func (h *ConversionHandler) Fail(c echo.Context) error {
	conversionID := c.Param("conversion_id")

	var req FailConversionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	conversion, err := h.conversionService.FailConversion(ctx, conversionID, req.Reason)
	if err != nil {
		logger.Error("Failed to record conversion failure", "conversion_id", conversionID, "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(conversion))
}
