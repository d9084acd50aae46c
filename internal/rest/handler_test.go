package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customerIntel/business/attribution"
	"customerIntel/business/churn"
	"customerIntel/business/customer"
	"customerIntel/business/duplicate"
	"customerIntel/business/ltv"
	"customerIntel/business/tracking"
	"customerIntel/domain"
)

var refNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var res ResponseError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

// ---- mocks ----

type MockTrackingService struct{ mock.Mock }

func (m *MockTrackingService) TrackPageView(ctx context.Context, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) TrackAddToCart(ctx context.Context, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) TrackBeginCheckout(ctx context.Context, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) TrackPurchase(ctx context.Context, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) TrackSignUp(ctx context.Context, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) TrackEvent(ctx context.Context, eventType string, p domain.TrackPayload) (domain.Event, error) {
	args := m.Called(ctx, eventType, p)
	return args.Get(0).(domain.Event), args.Error(1)
}

func (m *MockTrackingService) RealTimeStats(ctx context.Context, tenantID *uint) (domain.RealTimeStats, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(domain.RealTimeStats), args.Error(1)
}

type MockAttributionService struct{ mock.Mock }

func (m *MockAttributionService) Attribute(ctx context.Context, id uint, model domain.AttributionModel) (domain.Attribution, error) {
	args := m.Called(ctx, id, model)
	return args.Get(0).(domain.Attribution), args.Error(1)
}

func (m *MockAttributionService) CompareModels(ctx context.Context, start, end time.Time, tenantID *uint) (domain.ModelComparison, error) {
	args := m.Called(ctx, start, end, tenantID)
	return args.Get(0).(domain.ModelComparison), args.Error(1)
}

func (m *MockAttributionService) ChannelReport(ctx context.Context, model domain.AttributionModel, start, end time.Time, tenantID *uint) (domain.ChannelReport, error) {
	args := m.Called(ctx, model, start, end, tenantID)
	return args.Get(0).(domain.ChannelReport), args.Error(1)
}

func (m *MockAttributionService) AnalyzeJourney(ctx context.Context, customerID uint) (domain.CustomerJourney, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(domain.CustomerJourney), args.Error(1)
}

type MockChurnService struct {
	mock.Mock
	ChurnService
}

func (m *MockChurnService) Predict(ctx context.Context, customerID uint) (domain.ChurnPrediction, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(domain.ChurnPrediction), args.Error(1)
}

func (m *MockChurnService) AtRiskCustomers(ctx context.Context, minLevel domain.RiskLevel, limit int, tenantID *uint) ([]domain.ChurnPrediction, error) {
	args := m.Called(ctx, minLevel, limit, tenantID)
	return args.Get(0).([]domain.ChurnPrediction), args.Error(1)
}

type MockLtvService struct {
	mock.Mock
	LtvService
}

func (m *MockLtvService) Predict(ctx context.Context, customerID uint) (domain.LtvPrediction, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(domain.LtvPrediction), args.Error(1)
}

func (m *MockLtvService) HighPotentialCustomers(ctx context.Context, limit int, tenantID *uint) ([]domain.LtvPrediction, error) {
	args := m.Called(ctx, limit, tenantID)
	return args.Get(0).([]domain.LtvPrediction), args.Error(1)
}

type MockDuplicateService struct {
	mock.Mock
	DuplicateService
}

func (m *MockDuplicateService) FindForCustomer(ctx context.Context, customerID uint, threshold float64) ([]domain.DuplicateCandidate, error) {
	args := m.Called(ctx, customerID, threshold)
	return args.Get(0).([]domain.DuplicateCandidate), args.Error(1)
}

func (m *MockDuplicateService) Dismiss(ctx context.Context, matchID uint) (domain.DuplicateMatch, error) {
	args := m.Called(ctx, matchID)
	return args.Get(0).(domain.DuplicateMatch), args.Error(1)
}

type MockCustomerService struct {
	mock.Mock
	CustomerService
}

func (m *MockCustomerService) Get(ctx context.Context, id uint) (domain.CustomerProfile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.CustomerProfile), args.Error(1)
}

func (m *MockCustomerService) Merge(ctx context.Context, sourceID, targetID uint) (domain.CustomerProfile, error) {
	args := m.Called(ctx, sourceID, targetID)
	return args.Get(0).(domain.CustomerProfile), args.Error(1)
}

type MockConversionService struct {
	mock.Mock
	ConversionService
}

func (m *MockConversionService) ConfirmConversion(ctx context.Context, conversionID, apiResponse string) (domain.Conversion, error) {
	args := m.Called(ctx, conversionID, apiResponse)
	return args.Get(0).(domain.Conversion), args.Error(1)
}

func (m *MockConversionService) FailConversion(ctx context.Context, conversionID, reason string) (domain.Conversion, error) {
	args := m.Called(ctx, conversionID, reason)
	return args.Get(0).(domain.Conversion), args.Error(1)
}

// ---- tracking ----

func TestTrackPageViewReturnsCreated(t *testing.T) {
	svc := new(MockTrackingService)
	h := NewTrackingHandler(svc)

	customerID := uint(9)
	svc.On("TrackPageView", mock.Anything, mock.MatchedBy(func(p domain.TrackPayload) bool {
		return p.VisitorID == "v-1" && p.PageURL == "https://shop.test/" && p.UserAgent == "unit-test"
	})).Return(domain.Event{ID: 3, Type: domain.EventPageView, CustomerID: &customerID, SessionID: "s-1"}, nil)

	c, rec := newContext(http.MethodPost, "/api/v1/track/pageview", `{"visitor_id":"v-1","page_url":"https://shop.test/"}`)
	c.Request().Header.Set("User-Agent", "unit-test")

	require.NoError(t, h.PageView(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestTrackRejectsInvalidPayload(t *testing.T) {
	svc := new(MockTrackingService)
	h := NewTrackingHandler(svc)

	c, rec := newContext(http.MethodPost, "/api/v1/track/purchase", `{"email":"not-an-email","value":10}`)

	require.NoError(t, h.Purchase(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "TrackPurchase", mock.Anything, mock.Anything)
}

func TestTrackEventRejectsUnknownType(t *testing.T) {
	svc := new(MockTrackingService)
	h := NewTrackingHandler(svc)

	c, rec := newContext(http.MethodPost, "/api/v1/track/event/teleport", `{"visitor_id":"v-1"}`)
	c.SetParamNames("type")
	c.SetParamValues("teleport")

	require.NoError(t, h.Event(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "teleport")
}

func TestRealTimeScopesToTenant(t *testing.T) {
	svc := new(MockTrackingService)
	h := NewTrackingHandler(svc)

	svc.On("RealTimeStats", mock.Anything, mock.MatchedBy(func(id *uint) bool {
		return id != nil && *id == 4
	})).Return(domain.RealTimeStats{ActiveSessions: 2}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/realtime?tenant_id=4", "")

	require.NoError(t, h.RealTime(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

// ---- attribution ----

func TestConversionAttributionRejectsUnknownModel(t *testing.T) {
	svc := new(MockAttributionService)
	h := NewAttributionHandler(svc)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/attribution/conversions/5?model=markov", "")
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Conversion(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, attribution.ErrUnknownModel.Error())
}

func TestConversionAttributionDefaultsToLinear(t *testing.T) {
	svc := new(MockAttributionService)
	h := NewAttributionHandler(svc)

	svc.On("Attribute", mock.Anything, uint(5), domain.ModelLinear).Return(domain.Attribution{}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/attribution/conversions/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")

	require.NoError(t, h.Conversion(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCompareUsesInclusiveDateRange(t *testing.T) {
	svc := new(MockAttributionService)
	h := NewAttributionHandler(svc)
	h.now = func() time.Time { return refNow }

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 10, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	svc.On("CompareModels", mock.Anything, start, end, (*uint)(nil)).Return(domain.ModelComparison{}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/attribution/compare?start=2025-06-01&end=2025-06-10", "")

	require.NoError(t, h.Compare(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCompareRejectsInvertedRange(t *testing.T) {
	svc := new(MockAttributionService)
	h := NewAttributionHandler(svc)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/attribution/compare?start=2025-06-10&end=2025-06-01", "")

	require.NoError(t, h.Compare(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJourneyMissingCustomerIsNotFound(t *testing.T) {
	svc := new(MockAttributionService)
	h := NewAttributionHandler(svc)

	svc.On("AnalyzeJourney", mock.Anything, uint(77)).Return(domain.CustomerJourney{}, attribution.ErrCustomerNotFound)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/attribution/journey/77", "")
	c.SetParamNames("customer_id")
	c.SetParamValues("77")

	require.NoError(t, h.Journey(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ---- churn ----

func TestChurnPredictMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{churn.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load activity: %w", context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		svc := new(MockChurnService)
		h := NewChurnHandler(svc)
		svc.On("Predict", mock.Anything, uint(12)).Return(domain.ChurnPrediction{}, tc.err)

		c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/customers/12", "")
		c.SetParamNames("id")
		c.SetParamValues("12")

		require.NoError(t, h.Predict(c))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestChurnPredictRejectsBadID(t *testing.T) {
	h := NewChurnHandler(new(MockChurnService))

	c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/customers/abc", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	require.NoError(t, h.Predict(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChurnAtRiskRejectsUnknownRiskLevel(t *testing.T) {
	svc := new(MockChurnService)
	h := NewChurnHandler(svc)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/at-risk?risk_level=extreme", "")

	require.NoError(t, h.AtRisk(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "AtRiskCustomers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChurnAtRiskParsesRiskLevelAndLimit(t *testing.T) {
	svc := new(MockChurnService)
	h := NewChurnHandler(svc)

	svc.On("AtRiskCustomers", mock.Anything, domain.RiskCritical, 500, (*uint)(nil)).Return([]domain.ChurnPrediction{}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/at-risk?risk_level=critical&limit=500", "")

	require.NoError(t, h.AtRisk(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestChurnAtRiskDefaultsToHigh(t *testing.T) {
	svc := new(MockChurnService)
	h := NewChurnHandler(svc)

	svc.On("AtRiskCustomers", mock.Anything, domain.RiskHigh, 0, (*uint)(nil)).Return([]domain.ChurnPrediction{}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/at-risk", "")

	require.NoError(t, h.AtRisk(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestChurnAtRiskRejectsLimitOutOfRange(t *testing.T) {
	for _, limit := range []string{"501", "1000", "-3"} {
		svc := new(MockChurnService)
		h := NewChurnHandler(svc)

		c, rec := newContext(http.MethodGet, "/api/v1/admin/churn/at-risk?limit="+limit, "")

		require.NoError(t, h.AtRisk(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
		svc.AssertNotCalled(t, "AtRiskCustomers", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

// ---- ltv ----

func TestLtvPredictMissingCustomerIsNotFound(t *testing.T) {
	svc := new(MockLtvService)
	h := NewLtvHandler(svc)

	svc.On("Predict", mock.Anything, uint(31)).Return(domain.LtvPrediction{}, ltv.ErrNotFound)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/ltv/customers/31", "")
	c.SetParamNames("id")
	c.SetParamValues("31")

	require.NoError(t, h.Predict(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ltv.ErrNotFound.Error(), decodeError(t, rec).Message)
}

func TestLtvHighPotentialRejectsLimitAboveCap(t *testing.T) {
	svc := new(MockLtvService)
	h := NewLtvHandler(svc)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/ltv/high-potential?limit=1000", "")

	require.NoError(t, h.HighPotential(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "HighPotentialCustomers", mock.Anything, mock.Anything, mock.Anything)
}

func TestLtvHighPotentialScopesToTenant(t *testing.T) {
	svc := new(MockLtvService)
	h := NewLtvHandler(svc)

	svc.On("HighPotentialCustomers", mock.Anything, 25, mock.MatchedBy(func(id *uint) bool {
		return id != nil && *id == 3
	})).Return([]domain.LtvPrediction{}, nil)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/ltv/high-potential?limit=25&tenant_id=3", "")

	require.NoError(t, h.HighPotential(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

// ---- duplicates ----

func TestDismissUnknownMatchIsNotFound(t *testing.T) {
	svc := new(MockDuplicateService)
	h := NewDuplicateHandler(svc)

	svc.On("Dismiss", mock.Anything, uint(6)).Return(domain.DuplicateMatch{}, duplicate.ErrMatchNotFound)

	c, rec := newContext(http.MethodPost, "/api/v1/admin/duplicates/matches/6/dismiss", "")
	c.SetParamNames("id")
	c.SetParamValues("6")

	require.NoError(t, h.Dismiss(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicatesForCustomerRejectsThresholdOutOfRange(t *testing.T) {
	svc := new(MockDuplicateService)
	h := NewDuplicateHandler(svc)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/duplicates/customers/4?threshold=1.5", "")
	c.SetParamNames("id")
	c.SetParamValues("4")

	require.NoError(t, h.ForCustomer(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "FindForCustomer", mock.Anything, mock.Anything, mock.Anything)
}

// ---- customers ----

func TestGetCustomerMissingIsNotFound(t *testing.T) {
	svc := new(MockCustomerService)
	h := NewCustomerHandler(svc)

	svc.On("Get", mock.Anything, uint(40)).Return(domain.CustomerProfile{}, customer.ErrNotFound)

	c, rec := newContext(http.MethodGet, "/api/v1/admin/customers/40", "")
	c.SetParamNames("id")
	c.SetParamValues("40")

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMergeAnonymizedCustomerConflicts(t *testing.T) {
	svc := new(MockCustomerService)
	h := NewCustomerHandler(svc)

	svc.On("Merge", mock.Anything, uint(2), uint(8)).Return(domain.CustomerProfile{}, fmt.Errorf("merge 2 into 8: %w", customer.ErrAnonymized))

	c, rec := newContext(http.MethodPost, "/api/v1/admin/customers/2/merge", `{"target_id":8}`)
	c.SetParamNames("id")
	c.SetParamValues("2")

	require.NoError(t, h.Merge(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMergeConflictsOnMergedSource(t *testing.T) {
	svc := new(MockCustomerService)
	h := NewCustomerHandler(svc)

	svc.On("Merge", mock.Anything, uint(2), uint(8)).Return(domain.CustomerProfile{}, customer.ErrAlreadyMerged)

	c, rec := newContext(http.MethodPost, "/api/v1/admin/customers/2/merge", `{"target_id":8}`)
	c.SetParamNames("id")
	c.SetParamValues("2")

	require.NoError(t, h.Merge(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMergeRequiresTarget(t *testing.T) {
	svc := new(MockCustomerService)
	h := NewCustomerHandler(svc)

	c, rec := newContext(http.MethodPost, "/api/v1/admin/customers/2/merge", `{}`)
	c.SetParamNames("id")
	c.SetParamValues("2")

	require.NoError(t, h.Merge(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Merge", mock.Anything, mock.Anything, mock.Anything)
}

// ---- conversions ----

func TestFailConversionRequiresReason(t *testing.T) {
	svc := new(MockConversionService)
	h := NewConversionHandler(svc)

	c, rec := newContext(http.MethodPost, "/api/v1/admin/conversions/01J/fail", `{}`)
	c.SetParamNames("conversion_id")
	c.SetParamValues("01J")

	require.NoError(t, h.Fail(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailUnknownConversionIsNotFound(t *testing.T) {
	svc := new(MockConversionService)
	h := NewConversionHandler(svc)

	svc.On("FailConversion", mock.Anything, "01J", "rejected").Return(domain.Conversion{}, tracking.ErrConversionNotFound)

	c, rec := newContext(http.MethodPost, "/api/v1/admin/conversions/01J/fail", `{"reason":"rejected"}`)
	c.SetParamNames("conversion_id")
	c.SetParamValues("01J")

	require.NoError(t, h.Fail(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmConversionOutOfOrderConflicts(t *testing.T) {
	svc := new(MockConversionService)
	h := NewConversionHandler(svc)

	svc.On("ConfirmConversion", mock.Anything, "01J", "").
		Return(domain.Conversion{}, fmt.Errorf("%w: confirm from pending", tracking.ErrInvalidConversionTransition))

	c, rec := newContext(http.MethodPost, "/api/v1/admin/conversions/01J/confirm", `{}`)
	c.SetParamNames("conversion_id")
	c.SetParamValues("01J")

	require.NoError(t, h.Confirm(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "confirm from pending")
}

func TestFailSettledConversionConflicts(t *testing.T) {
	svc := new(MockConversionService)
	h := NewConversionHandler(svc)

	svc.On("FailConversion", mock.Anything, "01J", "late").
		Return(domain.Conversion{}, fmt.Errorf("%w: fail from confirmed", tracking.ErrInvalidConversionTransition))

	c, rec := newContext(http.MethodPost, "/api/v1/admin/conversions/01J/fail", `{"reason":"late"}`)
	c.SetParamNames("conversion_id")
	c.SetParamValues("01J")

	require.NoError(t, h.Fail(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatusForPublisherMissing(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(tracking.ErrNoPublisher))
}
