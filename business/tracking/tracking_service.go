package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"customerIntel/business/customer"
	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const defaultCurrency = "EUR"

var ErrNoIdentity = errors.New("payload carries no customer identity")

// ---- Repository interfaces ----

type ProfileRepository interface {
	FindByEmailHash(ctx context.Context, hash string) (domain.CustomerProfile, bool, error)
	FindByVisitorID(ctx context.Context, visitorID string) (domain.CustomerProfile, bool, error)
	Create(ctx context.Context, p *domain.CustomerProfile) error
	Save(ctx context.Context, p *domain.CustomerProfile) error
}

type SessionRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (domain.Session, bool, error)
	Create(ctx context.Context, s *domain.Session) error
	Save(ctx context.Context, s *domain.Session) error
	FindIdle(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *domain.Event) error
}

type ConversionRepository interface {
	ActiveAccounts(ctx context.Context, tenantID *uint) ([]domain.AdAccount, error)
	Create(ctx context.Context, c *domain.Conversion) error
	Pending(ctx context.Context, limit int) ([]domain.Conversion, error)
	Save(ctx context.Context, c *domain.Conversion) error
	FindByConversionID(ctx context.Context, conversionID string) (domain.Conversion, bool, error)
}

// ConversionPublisher hands a pending conversion to the delivery collaborator.
type ConversionPublisher interface {
	Publish(ctx context.Context, c domain.Conversion) error
}

type StatsRepository interface {
	RealTimeStats(ctx context.Context, tenantID *uint, now time.Time) (domain.RealTimeStats, error)
}

// ---- Service ----

type TrackingService struct {
	profiles    ProfileRepository
	sessions    SessionRepository
	events      EventRepository
	conversions ConversionRepository
	stats       StatsRepository
	publisher   ConversionPublisher
	cipher      customer.PIICipher
	cfg         Config
	now         func() time.Time
}

func NewTrackingService(
	profiles ProfileRepository,
	sessions SessionRepository,
	events EventRepository,
	conversions ConversionRepository,
	stats StatsRepository,
	publisher ConversionPublisher,
	cipher customer.PIICipher,
	cfg Config,
) *TrackingService {
	return &TrackingService{
		profiles:    profiles,
		sessions:    sessions,
		events:      events,
		conversions: conversions,
		stats:       stats,
		publisher:   publisher,
		cipher:      cipher,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
	}
}

func (s *TrackingService) TrackPageView(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
	return s.track(ctx, domain.EventPageView, payload)
}

func (s *TrackingService) TrackAddToCart(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
	return s.track(ctx, domain.EventAddToCart, payload)
}

func (s *TrackingService) TrackBeginCheckout(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
	return s.track(ctx, domain.EventBeginCheckout, payload)
}

func (s *TrackingService) TrackPurchase(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
	return s.track(ctx, domain.EventPurchase, payload)
}

func (s *TrackingService) TrackSignUp(ctx context.Context, payload domain.TrackPayload) (domain.Event, error) {
	return s.track(ctx, domain.EventSignUp, payload)
}

// TrackEvent records any event of the fixed vocabulary.
func (s *TrackingService) TrackEvent(ctx context.Context, eventType string, payload domain.TrackPayload) (domain.Event, error) {
	t, err := domain.ParseEventType(eventType)
	if err != nil {
		return domain.Event{}, err
	}
	return s.track(ctx, t, payload)
}

func (s *TrackingService) track(ctx context.Context, eventType domain.EventType, payload domain.TrackPayload) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	now := s.now()

	session, newSession, err := s.resolveSession(ctx, payload, now)
	if err != nil {
		return domain.Event{}, err
	}

	profile, created, err := s.resolveCustomer(ctx, payload, session, now)
	if err != nil && !errors.Is(err, ErrNoIdentity) {
		return domain.Event{}, err
	}

	event := buildEvent(eventType, payload, session, profile, now)
	if err := s.events.Create(ctx, &event); err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}
	metrics.TrackedEventsTotal.WithLabelValues(string(eventType)).Inc()

	if profile != nil && session.CustomerID == nil {
		id := profile.ID
		session.CustomerID = &id
	}
	applySession(&session, event, now)
	if err := s.sessions.Save(ctx, &session); err != nil {
		return event, fmt.Errorf("save session: %w", err)
	}

	if profile != nil {
		touch := touchFrom(payload)
		switch {
		case created:
			customer.RecordVisit(profile, touch, now)
			if eventType == domain.EventPageView {
				profile.TotalPageviews++
			}
		case eventType == domain.EventPageView:
			customer.RecordVisit(profile, touch, now)
			profile.TotalPageviews++
		default:
			customer.RecordActivity(profile, touch, now)
		}
		if newSession {
			profile.TotalSessions++
		}

		switch eventType {
		case domain.EventAddToCart:
			customer.MarkCartAbandoned(profile, now)
		case domain.EventPurchase:
			tickets := payload.TicketCount
			if tickets == 0 {
				tickets = 1
			}
			profile.HasCartAbandoned = false
			customer.RecordPurchase(profile, event.ConversionValue, tickets, payload.TenantID, now)
		}

		if err := s.profiles.Save(ctx, profile); err != nil {
			return event, fmt.Errorf("save customer: %w", err)
		}
	}

	if forwardable(event) {
		s.queueConversions(ctx, event, profile)
	}

	return event, nil
}

// resolveSession reuses the session named by the token while it is active,
// otherwise opens a new one.
func (s *TrackingService) resolveSession(ctx context.Context, payload domain.TrackPayload, now time.Time) (domain.Session, bool, error) {
	sessionID := payload.SessionToken
	if sessionID != "" {
		existing, ok, err := s.sessions.FindBySessionID(ctx, sessionID)
		if err != nil {
			return domain.Session{}, false, fmt.Errorf("find session: %w", err)
		}
		if ok && existing.Active(now) {
			return existing, false, nil
		}
		if ok {
			// expired token, the id is taken
			sessionID = ""
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session := domain.Session{
		SessionID:      sessionID,
		TenantID:       payload.TenantID,
		VisitorID:      payload.VisitorID,
		StartedAt:      now,
		LastActivityAt: now,
		LandingPage:    payload.PageURL,
		Referrer:       payload.Referrer,
		UTM:            payload.UTM,
		ClickIDs:       payload.ClickIDs,
		DeviceType:     payload.DeviceType,
		Browser:        payload.Browser,
		OS:             payload.OS,
		CountryCode:    payload.CountryCode,
		City:           payload.City,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return domain.Session{}, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// resolveCustomer finds the profile by email hash, then by visitor id, and
// creates one when neither matches. created reports a fresh insert.
func (s *TrackingService) resolveCustomer(ctx context.Context, payload domain.TrackPayload, session domain.Session, now time.Time) (*domain.CustomerProfile, bool, error) {
	visitorID := payload.VisitorID
	if visitorID == "" {
		visitorID = session.VisitorID
	}
	if payload.Email == "" && visitorID == "" {
		return nil, false, ErrNoIdentity
	}

	if hash := customer.HashEmail(payload.Email); hash != "" {
		p, ok, err := s.profiles.FindByEmailHash(ctx, hash)
		if err != nil {
			return nil, false, fmt.Errorf("find customer by email: %w", err)
		}
		if ok {
			return &p, false, s.fillIdentity(&p, payload)
		}
	}

	if visitorID != "" {
		p, ok, err := s.profiles.FindByVisitorID(ctx, visitorID)
		if err != nil {
			return nil, false, fmt.Errorf("find customer by visitor: %w", err)
		}
		if ok {
			if payload.Email != "" && p.EmailHash == "" {
				if err := customer.SetEmail(&p, payload.Email, s.cipher); err != nil {
					return nil, false, err
				}
			}
			return &p, false, s.fillIdentity(&p, payload)
		}
	} else {
		visitorID = uuid.NewString()
	}

	p := domain.CustomerProfile{
		UUID:      uuid.New(),
		VisitorID: visitorID,
		Currency:  defaultCurrency,
	}
	if payload.Email != "" {
		if err := customer.SetEmail(&p, payload.Email, s.cipher); err != nil {
			return nil, false, err
		}
	}
	if err := s.fillIdentity(&p, payload); err != nil {
		return nil, false, err
	}
	customer.UpdateSegment(&p, now)

	if err := s.profiles.Create(ctx, &p); err != nil {
		return nil, false, fmt.Errorf("create customer: %w", err)
	}
	logger.Debug("customer created", "customer_id", p.ID, "visitor_id", visitorID)
	return &p, true, nil
}

// fillIdentity sets phone and names that the profile does not have yet.
func (s *TrackingService) fillIdentity(p *domain.CustomerProfile, payload domain.TrackPayload) error {
	if payload.Phone != "" && p.PhoneHash == "" {
		if err := customer.SetPhone(p, payload.Phone, s.cipher); err != nil {
			return err
		}
	}
	if (payload.FirstName != "" || payload.LastName != "") && p.FirstName == "" && p.LastName == "" {
		if err := customer.SetName(p, payload.FirstName, payload.LastName, s.cipher); err != nil {
			return err
		}
	}
	return nil
}

func buildEvent(eventType domain.EventType, payload domain.TrackPayload, session domain.Session, profile *domain.CustomerProfile, now time.Time) domain.Event {
	e := domain.Event{
		TenantID:        payload.TenantID,
		SessionID:       session.SessionID,
		VisitorID:       session.VisitorID,
		Type:            eventType,
		Category:        eventType.Category(),
		PageURL:         payload.PageURL,
		PageTitle:       payload.PageTitle,
		Referrer:        payload.Referrer,
		UTM:             payload.UTM,
		ClickIDs:        payload.ClickIDs,
		DeviceType:      payload.DeviceType,
		Browser:         payload.Browser,
		OS:              payload.OS,
		IPAddress:       payload.IPAddress,
		CountryCode:     payload.CountryCode,
		City:            payload.City,
		ConversionValue: payload.Value,
		Currency:        payload.Currency,
		ProductCategory: payload.ProductCategory,
		Order:           payload.Order(),
		Payload:         datatypes.NewJSONType(payload.EventPayload()),
		OccurredAt:      now,
	}
	if profile != nil {
		id := profile.ID
		e.CustomerID = &id
	}
	if e.Currency == "" && e.ConversionValue > 0 {
		e.Currency = defaultCurrency
	}
	if eventType == domain.EventPurchase || eventType == domain.EventSignUp {
		e.IsConverted = true
	}
	return e
}

func applySession(session *domain.Session, event domain.Event, now time.Time) {
	if event.Type == domain.EventPageView {
		session.RecordPageView(event.PageURL, now)
	} else {
		session.RecordActivity(now)
	}
	if event.Type == domain.EventPurchase {
		session.MarkConverted(event.ConversionValue)
	}
}

func touchFrom(p domain.TrackPayload) customer.Touch {
	return customer.Touch{
		UTM:         p.UTM,
		ClickIDs:    p.ClickIDs,
		Referrer:    p.Referrer,
		LandingPage: p.PageURL,
		DeviceID:    p.DeviceID,
		DeviceType:  p.DeviceType,
		Browser:     p.Browser,
		OS:          p.OS,
		CountryCode: p.CountryCode,
		Region:      p.Region,
		City:        p.City,
		PostalCode:  p.PostalCode,
		TenantID:    p.TenantID,
	}
}

// CloseIdleSessions ends sessions without activity for longer than the idle timeout.
func (s *TrackingService) CloseIdleSessions(ctx context.Context) (domain.BatchResult, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.SessionIdleTimeout)
	var res domain.BatchResult

	for {
		idle, err := s.sessions.FindIdle(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("find idle sessions: %w", err)
		}

		failed := 0
		for i := range idle {
			idle[i].End(now)
			if err := s.sessions.Save(ctx, &idle[i]); err != nil {
				logger.Warn("close session failed", "session_id", idle[i].SessionID, "error", err)
				failed++
				continue
			}
			res.Updated++
		}
		res.Errors += failed

		if len(idle) < s.cfg.BatchSize || failed == len(idle) {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	metrics.ObserveBatch("sessions", res.Updated, res.Errors)
	return res, nil
}

func (s *TrackingService) RealTimeStats(ctx context.Context, tenantID *uint) (domain.RealTimeStats, error) {
	return s.stats.RealTimeStats(ctx, tenantID, s.now())
}
