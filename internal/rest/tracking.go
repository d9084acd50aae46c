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

type TrackingService interface {
	TrackPageView(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)
	TrackAddToCart(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)
	TrackBeginCheckout(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)
	TrackPurchase(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)
	TrackSignUp(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)
	TrackEvent(ctx context.Context, eventType string, payload domain.TrackPayload) (domain.Event, error)
	RealTimeStats(ctx context.Context, tenantID *uint) (domain.RealTimeStats, error)
}

type TrackingHandler struct {
	trackingService TrackingService
	validator       *validator.Validate
	timeout         time.Duration
}

func NewTrackingHandler(trackingService TrackingService) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
		validator:       validator.New(),
		timeout:         handlerTimeout,
	}
}

type TrackResponse struct {
	EventID    uint             `json:"event_id"`
	EventType  domain.EventType `json:"event_type"`
	CustomerID *uint            `json:"customer_id,omitempty"`
	SessionID  string           `json:"session_id"`
}

type trackFunc func(ctx context.Context, payload domain.TrackPayload) (domain.Event, error)

func (h *TrackingHandler) track(c echo.Context, fn trackFunc) error {
	var payload domain.TrackPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid tracking payload"})
	}

	if payload.IPAddress == "" {
		payload.IPAddress = c.RealIP()
	}
	if payload.UserAgent == "" {
		payload.UserAgent = c.Request().UserAgent()
	}

	if err := h.validator.Struct(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	event, err := fn(ctx, payload)
	if err != nil {
		logger.Error("Failed to track event", "path", c.Path(), "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(TrackResponse{
		EventID:    event.ID,
		EventType:  event.Type,
		CustomerID: event.CustomerID,
		SessionID:  event.SessionID,
	}))
}

func (h *TrackingHandler) PageView(c echo.Context) error {
	return h.track(c, h.trackingService.TrackPageView)
}

func (h *TrackingHandler) AddToCart(c echo.Context) error {
	return h.track(c, h.trackingService.TrackAddToCart)
}

func (h *TrackingHandler) BeginCheckout(c echo.Context) error {
	return h.track(c, h.trackingService.TrackBeginCheckout)
}

func (h *TrackingHandler) Purchase(c echo.Context) error {
	return h.track(c, h.trackingService.TrackPurchase)
}

func (h *TrackingHandler) SignUp(c echo.Context) error {
	return h.track(c, h.trackingService.TrackSignUp)
}

func (h *TrackingHandler) Event(c echo.Context) error {
	eventType := c.Param("type")
	if _, err := domain.ParseEventType(eventType); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return h.track(c, func(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
		return h.trackingService.TrackEvent(ctx, eventType, payload)
	})
}

func (h *TrackingHandler) RealTime(c echo.Context) error {
	q, err := bindQuery(c, h.validator)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	stats, err := h.trackingService.RealTimeStats(ctx, q.tenant())
	if err != nil {
		logger.Error("Failed to load real-time stats", "error", err)
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}
