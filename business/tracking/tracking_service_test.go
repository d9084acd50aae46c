package tracking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"customerIntel/business/customer"
	"customerIntel/domain"
)

var refNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByEmailHash(ctx context.Context, hash string) (domain.CustomerProfile, bool, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(domain.CustomerProfile), args.Bool(1), args.Error(2)
}

func (m *MockProfileRepository) FindByVisitorID(ctx context.Context, visitorID string) (domain.CustomerProfile, bool, error) {
	args := m.Called(ctx, visitorID)
	return args.Get(0).(domain.CustomerProfile), args.Bool(1), args.Error(2)
}

func (m *MockProfileRepository) Create(ctx context.Context, p *domain.CustomerProfile) error {
	p.ID = 77
	return m.Called(ctx, p).Error(0)
}

func (m *MockProfileRepository) Save(ctx context.Context, p *domain.CustomerProfile) error {
	return m.Called(ctx, p).Error(0)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Session, bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.Session), args.Bool(1), args.Error(2)
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) Save(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) FindIdle(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]domain.Session), args.Error(1)
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, e *domain.Event) error {
	e.ID = 501
	return m.Called(ctx, e).Error(0)
}

type MockConversionRepository struct {
	mock.Mock
}

func (m *MockConversionRepository) ActiveAccounts(ctx context.Context, tenantID *uint) ([]domain.AdAccount, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]domain.AdAccount), args.Error(1)
}

func (m *MockConversionRepository) Create(ctx context.Context, c *domain.Conversion) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConversionRepository) Pending(ctx context.Context, limit int) ([]domain.Conversion, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Conversion), args.Error(1)
}

func (m *MockConversionRepository) Save(ctx context.Context, c *domain.Conversion) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConversionRepository) FindByConversionID(ctx context.Context, conversionID string) (domain.Conversion, bool, error) {
	args := m.Called(ctx, conversionID)
	return args.Get(0).(domain.Conversion), args.Bool(1), args.Error(2)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, c domain.Conversion) error {
	return m.Called(ctx, c.ConversionID).Error(0)
}

type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return "enc:" + s, nil
}

func (prefixCipher) Decrypt(s string) (string, error) {
	return strings.TrimPrefix(s, "enc:"), nil
}

type fixture struct {
	profiles    *MockProfileRepository
	sessions    *MockSessionRepository
	events      *MockEventRepository
	conversions *MockConversionRepository
	publisher   *MockPublisher
	svc         *TrackingService
}

func newFixture() *fixture {
	f := &fixture{
		profiles:    new(MockProfileRepository),
		sessions:    new(MockSessionRepository),
		events:      new(MockEventRepository),
		conversions: new(MockConversionRepository),
		publisher:   new(MockPublisher),
	}
	f.svc = NewTrackingService(f.profiles, f.sessions, f.events, f.conversions, nil, f.publisher, prefixCipher{}, Config{})
	f.svc.now = func() time.Time { return refNow }
	return f
}

func uintPtr(v uint) *uint { return &v }

func TestTrackPageView_NewVisitorCreatesSessionAndCustomer(t *testing.T) {
	f := newFixture()
	f.profiles.On("FindByVisitorID", mock.Anything, "v-1").Return(domain.CustomerProfile{}, false, nil)
	f.profiles.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.profiles.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	event, err := f.svc.TrackPageView(context.Background(), domain.TrackPayload{
		VisitorID: "v-1",
		PageURL:   "/home",
		UTM:       domain.UTM{Source: "google", Medium: "cpc"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.EventPageView, event.Type)
	assert.Equal(t, domain.CategoryNavigation, event.Category)
	require.NotNil(t, event.CustomerID)
	assert.Equal(t, uint(77), *event.CustomerID)
	assert.NotEmpty(t, event.SessionID)

	f.profiles.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(p *domain.CustomerProfile) bool {
		return p.TotalVisits == 1 && p.TotalPageviews == 1 && p.TotalSessions == 1 && p.FirstSource == "google"
	}))
	f.sessions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.Pageviews == 1 && s.Events == 1 && s.CustomerID != nil
	}))
	f.conversions.AssertNotCalled(t, "ActiveAccounts")
}

func TestTrackPageView_NoIdentityRecordsAnonymousEvent(t *testing.T) {
	f := newFixture()
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	event, err := f.svc.TrackPageView(context.Background(), domain.TrackPayload{PageURL: "/"})

	require.NoError(t, err)
	assert.Nil(t, event.CustomerID)
	f.profiles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTrackPurchase_UpdatesProfileAndQueuesConversions(t *testing.T) {
	f := newFixture()
	existing := domain.CustomerProfile{ID: 12, VisitorID: "v-2", EmailHash: customer.HashEmail("ana@example.com"), TotalVisits: 3, HasCartAbandoned: true}
	f.profiles.On("FindByEmailHash", mock.Anything, customer.HashEmail("ana@example.com")).Return(existing, true, nil)
	f.profiles.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("FindBySessionID", mock.Anything, "s-1").Return(domain.Session{
		SessionID:      "s-1",
		StartedAt:      refNow.Add(-5 * time.Minute),
		LastActivityAt: refNow.Add(-time.Minute),
		CustomerID:     uintPtr(12),
	}, true, nil)
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.conversions.On("ActiveAccounts", mock.Anything, uintPtr(3)).Return([]domain.AdAccount{
		{ID: 1, Platform: domain.PlatformMeta, IsActive: true, ReceiveConversions: true},
		{ID: 2, Platform: domain.PlatformGoogleAds, IsActive: true, ReceiveConversions: true, TenantID: uintPtr(9)},
		{ID: 3, Platform: domain.PlatformTikTok, IsActive: true, ReceiveConversions: false},
	}, nil)
	f.conversions.On("Create", mock.Anything, mock.Anything).Return(nil)

	event, err := f.svc.TrackPurchase(context.Background(), domain.TrackPayload{
		Email:        "ana@example.com",
		SessionToken: "s-1",
		TenantID:     uintPtr(3),
		Value:        80,
		ClickIDs:     domain.ClickIDs{Fbclid: "fb-xyz"},
	})

	require.NoError(t, err)
	assert.True(t, event.IsConverted)
	assert.Equal(t, "EUR", event.Currency)

	f.profiles.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(p *domain.CustomerProfile) bool {
		return p.TotalOrders == 1 && p.TotalSpent == 80 && !p.HasCartAbandoned && p.TotalSessions == 0
	}))
	f.sessions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.Converted && s.ConversionValue == 80
	}))

	f.conversions.AssertNumberOfCalls(t, "Create", 1)
	f.conversions.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversion) bool {
		payload := c.Payload.Data()
		return c.AdAccountID == 1 &&
			c.Status == domain.ConversionPending &&
			c.ClickID == "fb-xyz" &&
			len(c.ConversionID) == 26 &&
			payload.EventName == "Purchase" &&
			strings.HasPrefix(payload.Fbc, "fb.1.") &&
			c.UserData.Data().Em == customer.HashEmail("ana@example.com")
	}))
}

func TestTrack_ForwardingFailureDoesNotFailTracking(t *testing.T) {
	f := newFixture()
	f.profiles.On("FindByVisitorID", mock.Anything, "v-3").Return(domain.CustomerProfile{ID: 4, VisitorID: "v-3"}, true, nil)
	f.profiles.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.conversions.On("ActiveAccounts", mock.Anything, (*uint)(nil)).Return([]domain.AdAccount(nil), errors.New("db down"))

	_, err := f.svc.TrackAddToCart(context.Background(), domain.TrackPayload{VisitorID: "v-3"})

	require.NoError(t, err)
	f.profiles.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(p *domain.CustomerProfile) bool {
		return p.HasCartAbandoned && p.LastCartAbandonedAt != nil
	}))
}

func TestTrackEvent_RejectsUnknownType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.TrackEvent(context.Background(), "teleport", domain.TrackPayload{})
	assert.Error(t, err)
}

func TestPlatformEventName(t *testing.T) {
	assert.Equal(t, "CompletePayment", PlatformEventName(domain.PlatformTikTok, domain.EventPurchase))
	assert.Equal(t, "START_CHECKOUT", PlatformEventName(domain.PlatformLinkedIn, domain.EventBeginCheckout))
	assert.Equal(t, "OTHER", PlatformEventName(domain.PlatformLinkedIn, domain.EventSearch))
	assert.Equal(t, "CustomEvent", PlatformEventName(domain.PlatformMeta, domain.EventSearch))
	assert.Equal(t, "Lead", PlatformEventName(domain.PlatformMeta, leadEvent))
}

func TestBuildPayload_OnlyTargetPlatformFields(t *testing.T) {
	event := domain.Event{
		Type:            domain.EventCustom,
		OccurredAt:      refNow,
		ConversionValue: 10,
		ClickIDs:        domain.ClickIDs{Gclid: "g", Fbclid: "f", Ttclid: "t", LiFatID: "l"},
		Payload:         datatypes.NewJSONType(domain.EventPayload{Label: "Lead"}),
	}

	google := BuildPayload(domain.AdAccount{Platform: domain.PlatformGoogleAds, ConversionActionID: "ca-1"}, event, domain.AdUserData{})
	assert.Equal(t, "g", google.Gclid)
	assert.Equal(t, "ca-1", google.ConversionAction)
	assert.Empty(t, google.Fbc)
	assert.Empty(t, google.Ttclid)

	linkedin := BuildPayload(domain.AdAccount{Platform: domain.PlatformLinkedIn}, event, domain.AdUserData{Em: "hash"})
	assert.Equal(t, "LEAD", linkedin.EventName)
	assert.Equal(t, []string{"hash"}, linkedin.UserIdentifiers)
	assert.Empty(t, linkedin.Gclid)
	assert.Equal(t, "EUR", linkedin.Currency)
}

func TestProcessPendingConversions(t *testing.T) {
	f := newFixture()
	f.conversions.On("Pending", mock.Anything, pendingLimit).Return([]domain.Conversion{
		{ConversionID: "ok", Platform: domain.PlatformMeta, Status: domain.ConversionPending},
		{ConversionID: "flaky", Platform: domain.PlatformTikTok, Status: domain.ConversionPending, RetryCount: 1},
		{ConversionID: "dead", Platform: domain.PlatformTikTok, Status: domain.ConversionPending, RetryCount: 4},
	}, nil)
	f.publisher.On("Publish", mock.Anything, "ok").Return(nil)
	f.publisher.On("Publish", mock.Anything, "flaky").Return(errors.New("timeout"))
	f.publisher.On("Publish", mock.Anything, "dead").Return(errors.New("timeout"))
	f.conversions.On("Save", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.ProcessPendingConversions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.ByPlatform[domain.PlatformMeta])

	f.conversions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(c *domain.Conversion) bool {
		return c.ConversionID == "ok" && c.Status == domain.ConversionSent && c.SentAt != nil
	}))
	f.conversions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(c *domain.Conversion) bool {
		return c.ConversionID == "flaky" && c.Status == domain.ConversionPending && c.RetryCount == 2
	}))
	f.conversions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(c *domain.Conversion) bool {
		return c.ConversionID == "dead" && c.Status == domain.ConversionFailed && c.RetryCount == 5
	}))
}

func TestProcessPendingConversions_NoPublisher(t *testing.T) {
	f := newFixture()
	f.svc.publisher = nil

	_, err := f.svc.ProcessPendingConversions(context.Background())

	assert.ErrorIs(t, err, ErrNoPublisher)
}

func TestConfirmConversion_NotFound(t *testing.T) {
	f := newFixture()
	f.conversions.On("FindByConversionID", mock.Anything, "nope").Return(domain.Conversion{}, false, nil)

	_, err := f.svc.ConfirmConversion(context.Background(), "nope", "")

	assert.ErrorIs(t, err, ErrConversionNotFound)
}

func TestConfirmConversion_FromSent(t *testing.T) {
	f := newFixture()
	f.conversions.On("FindByConversionID", mock.Anything, "c1").
		Return(domain.Conversion{ConversionID: "c1", Platform: domain.PlatformMeta, Status: domain.ConversionSent}, true, nil)
	f.conversions.On("Save", mock.Anything, mock.Anything).Return(nil)

	c, err := f.svc.ConfirmConversion(context.Background(), "c1", `{"ok":true}`)

	require.NoError(t, err)
	assert.Equal(t, domain.ConversionConfirmed, c.Status)
	require.NotNil(t, c.ConfirmedAt)
	assert.Equal(t, refNow, *c.ConfirmedAt)
}

func TestConfirmConversion_RejectsUnsentStatuses(t *testing.T) {
	for _, status := range []domain.ConversionStatus{domain.ConversionPending, domain.ConversionConfirmed, domain.ConversionFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.conversions.On("FindByConversionID", mock.Anything, "c1").
				Return(domain.Conversion{ConversionID: "c1", Status: status}, true, nil)

			_, err := f.svc.ConfirmConversion(context.Background(), "c1", "")

			assert.ErrorIs(t, err, ErrInvalidConversionTransition)
			f.conversions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestFailConversion_InFlightReturnsToPending(t *testing.T) {
	for _, status := range []domain.ConversionStatus{domain.ConversionPending, domain.ConversionSent} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.conversions.On("FindByConversionID", mock.Anything, "c1").
				Return(domain.Conversion{ConversionID: "c1", Status: status, RetryCount: 1}, true, nil)
			f.conversions.On("Save", mock.Anything, mock.Anything).Return(nil)

			c, err := f.svc.FailConversion(context.Background(), "c1", "invalid click id")

			require.NoError(t, err)
			assert.Equal(t, domain.ConversionPending, c.Status)
			assert.Equal(t, 2, c.RetryCount)
			assert.Equal(t, "invalid click id", c.ErrorMessage)
		})
	}
}

func TestFailConversion_RejectsSettledStatuses(t *testing.T) {
	for _, status := range []domain.ConversionStatus{domain.ConversionConfirmed, domain.ConversionFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.conversions.On("FindByConversionID", mock.Anything, "c1").
				Return(domain.Conversion{ConversionID: "c1", Status: status}, true, nil)

			c, err := f.svc.FailConversion(context.Background(), "c1", "late rejection")

			assert.ErrorIs(t, err, ErrInvalidConversionTransition)
			assert.Empty(t, c.Status)
			f.conversions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestCloseIdleSessions(t *testing.T) {
	f := newFixture()
	f.svc.cfg.BatchSize = 2
	cutoff := refNow.Add(-domain.SessionIdleTimeout)
	started := refNow.Add(-2 * time.Hour)
	f.sessions.On("FindIdle", mock.Anything, cutoff, 2).Return([]domain.Session{
		{SessionID: "a", StartedAt: started, LastActivityAt: started.Add(5 * time.Second), Pageviews: 1},
		{SessionID: "b", StartedAt: started, LastActivityAt: started.Add(time.Minute), Pageviews: 3},
	}, nil).Once()
	f.sessions.On("FindIdle", mock.Anything, cutoff, 2).Return([]domain.Session{}, nil).Once()
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.CloseIdleSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	f.sessions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.SessionID == "a" && s.IsBounce && !s.IsEngaged && s.DurationSeconds == 5
	}))
	f.sessions.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.SessionID == "b" && !s.IsBounce && s.IsEngaged
	}))
}
