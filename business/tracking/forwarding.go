package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"

	"customerIntel/business/customer"
	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const (
	pendingLimit      = 1000
	defaultMaxRetries = 5
)

var (
	ErrNoPublisher        = errors.New("no conversion publisher configured")
	ErrRetriesExhausted   = errors.New("conversion retries exhausted")
	ErrConversionNotFound = errors.New("conversion not found")

	ErrInvalidConversionTransition = errors.New("invalid conversion status transition")
)

type Config struct {
	SessionIdleTimeout time.Duration
	BatchSize          int
	MaxRetries         int
}

func (c Config) withDefaults() Config {
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = domain.SessionIdleTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = customer.DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// leadEvent is the key of a custom event labelled "lead".
const leadEvent domain.EventType = "lead"

var (
	metaEvents = map[domain.EventType]string{
		domain.EventPurchase:      "Purchase",
		domain.EventAddToCart:     "AddToCart",
		domain.EventBeginCheckout: "InitiateCheckout",
		domain.EventSignUp:        "CompleteRegistration",
		leadEvent:                 "Lead",
		domain.EventViewItem:      "ViewContent",
	}
	tiktokEvents = map[domain.EventType]string{
		domain.EventPurchase:      "CompletePayment",
		domain.EventAddToCart:     "AddToCart",
		domain.EventBeginCheckout: "InitiateCheckout",
		domain.EventSignUp:        "CompleteRegistration",
		leadEvent:                 "SubmitForm",
		domain.EventViewItem:      "ViewContent",
	}
	linkedinEvents = map[domain.EventType]string{
		domain.EventPurchase:      "PURCHASE",
		domain.EventAddToCart:     "ADD_TO_CART",
		domain.EventBeginCheckout: "START_CHECKOUT",
		domain.EventSignUp:        "SIGN_UP",
		leadEvent:                 "LEAD",
	}
)

func eventKey(e domain.Event) domain.EventType {
	if e.Type == domain.EventCustom && strings.EqualFold(e.Payload.Data().Label, "lead") {
		return leadEvent
	}
	return e.Type
}

func forwardable(e domain.Event) bool {
	switch eventKey(e) {
	case domain.EventPurchase, domain.EventAddToCart, domain.EventBeginCheckout, domain.EventSignUp, leadEvent:
		return true
	}
	return false
}

// PlatformEventName maps an internal event type to the platform's own name.
func PlatformEventName(platform domain.AdPlatform, t domain.EventType) string {
	var names map[domain.EventType]string
	fallback := "CustomEvent"
	switch platform {
	case domain.PlatformMeta:
		names = metaEvents
	case domain.PlatformTikTok:
		names = tiktokEvents
	case domain.PlatformLinkedIn:
		names, fallback = linkedinEvents, "OTHER"
	default:
		return string(t)
	}
	if n, ok := names[t]; ok {
		return n
	}
	return fallback
}

// BuildPayload shapes a conversion for its platform. Only that platform's
// fields are set.
func BuildPayload(account domain.AdAccount, event domain.Event, userData domain.AdUserData) domain.PlatformPayload {
	out := domain.PlatformPayload{
		Platform:  account.Platform,
		EventName: PlatformEventName(account.Platform, eventKey(event)),
		EventTime: event.OccurredAt.Unix(),
		Value:     event.ConversionValue,
		Currency:  event.Currency,
	}
	if out.Currency == "" {
		out.Currency = defaultCurrency
	}
	if event.Order.OrderID != nil {
		out.OrderID = strconv.FormatUint(uint64(*event.Order.OrderID), 10)
	}

	switch account.Platform {
	case domain.PlatformGoogleAds:
		out.ConversionAction = account.ConversionActionID
		out.Gclid = event.Gclid
	case domain.PlatformMeta:
		out.ActionSource = "website"
		out.EventSourceURL = event.PageURL
		if event.Fbclid != "" {
			out.Fbc = fmt.Sprintf("fb.1.%d.%s", event.OccurredAt.UnixMilli(), event.Fbclid)
		}
	case domain.PlatformTikTok:
		out.Ttclid = event.Ttclid
		out.EventSourceURL = event.PageURL
	case domain.PlatformLinkedIn:
		out.LiFatID = event.LiFatID
		if userData.Em != "" {
			out.UserIdentifiers = []string{userData.Em}
		}
	}
	return out
}

func newConversionID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// queueConversions writes one pending conversion per eligible ad account.
// Failures are logged and never fail the tracking call.
func (s *TrackingService) queueConversions(ctx context.Context, event domain.Event, profile *domain.CustomerProfile) {
	accounts, err := s.conversions.ActiveAccounts(ctx, event.TenantID)
	if err != nil {
		logger.Warn("load ad accounts failed", "event_id", event.ID, "error", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	var userData domain.AdUserData
	if profile != nil {
		userData, err = customer.HashedAdData(*profile, s.cipher)
		if err != nil {
			logger.Warn("hash ad user data failed", "customer_id", profile.ID, "error", err)
		}
	}

	now := s.now()
	for _, account := range accounts {
		if !account.IsActive || !account.ReceiveConversions {
			continue
		}
		if account.TenantID != nil && (event.TenantID == nil || *account.TenantID != *event.TenantID) {
			continue
		}

		payload := BuildPayload(account, event, userData)
		conv := domain.Conversion{
			ConversionID:   newConversionID(now),
			AdAccountID:    account.ID,
			Platform:       account.Platform,
			CustomerID:     event.CustomerID,
			EventID:        event.ID,
			TenantID:       event.TenantID,
			EventType:      event.Type,
			ConversionTime: event.OccurredAt,
			Value:          event.ConversionValue,
			Currency:       payload.Currency,
			OrderID:        event.Order.OrderID,
			ClickID:        account.Platform.ClickID(event.ClickIDs),
			UserData:       datatypes.NewJSONType(userData),
			Payload:        datatypes.NewJSONType(payload),
			Status:         domain.ConversionPending,
		}
		if err := s.conversions.Create(ctx, &conv); err != nil {
			logger.Warn("queue conversion failed", "event_id", event.ID, "account_id", account.ID, "error", err)
			continue
		}
		metrics.ConversionsTotal.WithLabelValues(string(account.Platform), string(domain.ConversionPending)).Inc()
	}
}

// ProcessPendingConversions hands pending conversions to the publisher.
// A failed hand-off stays pending until it runs out of retries.
func (s *TrackingService) ProcessPendingConversions(ctx context.Context) (domain.ConversionRunResult, error) {
	res := domain.ConversionRunResult{ByPlatform: map[domain.AdPlatform]int{}}
	if s.publisher == nil {
		return res, ErrNoPublisher
	}

	pending, err := s.conversions.Pending(ctx, pendingLimit)
	if err != nil {
		return res, fmt.Errorf("load pending conversions: %w", err)
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		c := &pending[i]
		res.Processed++

		if err := s.publisher.Publish(ctx, *c); err != nil {
			s.recordFailure(c, err)
			res.Failed++
		} else {
			sent := s.now()
			c.Status = domain.ConversionSent
			c.SentAt = &sent
			c.ErrorMessage = ""
			res.Success++
			res.ByPlatform[c.Platform]++
		}

		if err := s.conversions.Save(ctx, c); err != nil {
			logger.Error("save conversion failed", "conversion_id", c.ConversionID, "error", err)
		}
		metrics.ConversionsTotal.WithLabelValues(string(c.Platform), string(c.Status)).Inc()
	}

	logger.Info("conversion run finished", "processed", res.Processed, "success", res.Success, "failed", res.Failed)
	return res, nil
}

func (s *TrackingService) recordFailure(c *domain.Conversion, err error) {
	c.RetryCount++
	c.ErrorMessage = err.Error()
	if c.RetryCount >= s.cfg.MaxRetries {
		c.Status = domain.ConversionFailed
		c.ErrorMessage = fmt.Sprintf("%v: %s", ErrRetriesExhausted, err)
	}
	logger.Warn("publish conversion failed", "conversion_id", c.ConversionID, "retry", c.RetryCount, "error", err)
}

// ConfirmConversion records the platform's acknowledgement of a sent conversion.
func (s *TrackingService) ConfirmConversion(ctx context.Context, conversionID, apiResponse string) (domain.Conversion, error) {
	c, ok, err := s.conversions.FindByConversionID(ctx, conversionID)
	if err != nil {
		return domain.Conversion{}, err
	}
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}
	if c.Status != domain.ConversionSent {
		return domain.Conversion{}, fmt.Errorf("%w: confirm from %s", ErrInvalidConversionTransition, c.Status)
	}

	now := s.now()
	c.Status = domain.ConversionConfirmed
	c.ConfirmedAt = &now
	c.APIResponse = apiResponse
	if err := s.conversions.Save(ctx, &c); err != nil {
		return domain.Conversion{}, err
	}
	metrics.ConversionsTotal.WithLabelValues(string(c.Platform), string(c.Status)).Inc()
	return c, nil
}

// FailConversion records a rejection reported by the delivery side. Only
// conversions still in flight (pending or sent) can fail.
func (s *TrackingService) FailConversion(ctx context.Context, conversionID, reason string) (domain.Conversion, error) {
	c, ok, err := s.conversions.FindByConversionID(ctx, conversionID)
	if err != nil {
		return domain.Conversion{}, err
	}
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}
	if c.Status != domain.ConversionPending && c.Status != domain.ConversionSent {
		return domain.Conversion{}, fmt.Errorf("%w: fail from %s", ErrInvalidConversionTransition, c.Status)
	}

	s.recordFailure(&c, errors.New(reason))
	if c.Status != domain.ConversionFailed {
		c.Status = domain.ConversionPending
	}
	if err := s.conversions.Save(ctx, &c); err != nil {
		return domain.Conversion{}, err
	}
	metrics.ConversionsTotal.WithLabelValues(string(c.Platform), string(c.Status)).Inc()
	return c, nil
}
