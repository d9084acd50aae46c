package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customerIntel/domain"
)

var convertedAt = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func touch(daysBefore int, channel domain.Channel) domain.Touchpoint {
	return domain.Touchpoint{
		OccurredAt: convertedAt.AddDate(0, 0, -daysBefore),
		Channel:    channel,
		Source:     string(channel),
	}
}

func sumWeights(attributed []domain.AttributedTouchpoint) (weights, values float64) {
	for _, a := range attributed {
		weights += a.AttributedConversion
		values += a.AttributedValue
	}
	return weights, values
}

func TestAllocate_WeightsSumToOne(t *testing.T) {
	journeys := [][]domain.Touchpoint{
		{touch(3, domain.ChannelDirect)},
		{touch(9, domain.ChannelEmail), touch(1, domain.ChannelDirect)},
		{touch(20, domain.ChannelGoogleAds), touch(12, domain.ChannelEmail), touch(4, domain.ChannelReferral), touch(0, domain.ChannelDirect)},
	}
	for _, model := range []domain.AttributionModel{
		domain.ModelFirstTouch, domain.ModelLastTouch, domain.ModelLinear,
		domain.ModelTimeDecay, domain.ModelPositionBased, domain.ModelDataDriven,
	} {
		for _, tps := range journeys {
			attributed, err := Allocate(model, tps, 250, convertedAt, 7)
			require.NoError(t, err)

			weights, values := sumWeights(attributed)
			assert.InDelta(t, 1.0, weights, 1e-9, "model %s, %d touchpoints", model, len(tps))
			assert.InDelta(t, 250, values, 1e-9, "model %s, %d touchpoints", model, len(tps))
		}
	}
}

func TestAllocate_Linear(t *testing.T) {
	tps := []domain.Touchpoint{touch(5, domain.ChannelEmail), touch(3, domain.ChannelDirect), touch(1, domain.ChannelReferral)}

	attributed, err := Allocate(domain.ModelLinear, tps, 90, convertedAt, 7)

	require.NoError(t, err)
	require.Len(t, attributed, 3)
	for _, a := range attributed {
		assert.InDelta(t, 30, a.AttributedValue, 1e-9)
	}
	assert.Equal(t, domain.PositionFirst, attributed[0].Position)
	assert.Equal(t, domain.PositionMiddle, attributed[1].Position)
	assert.Equal(t, domain.PositionLast, attributed[2].Position)
}

func TestAllocate_SingleTouchpointModelsAgree(t *testing.T) {
	tps := []domain.Touchpoint{touch(2, domain.ChannelEmail)}

	first, err := Allocate(domain.ModelFirstTouch, tps, 40, convertedAt, 7)
	require.NoError(t, err)
	last, err := Allocate(domain.ModelLastTouch, tps, 40, convertedAt, 7)
	require.NoError(t, err)
	position, err := Allocate(domain.ModelPositionBased, tps, 40, convertedAt, 7)
	require.NoError(t, err)

	assert.Equal(t, first, last)
	assert.Equal(t, first, position)
}

func TestAllocate_TimeDecay(t *testing.T) {
	tps := []domain.Touchpoint{touch(10, domain.ChannelEmail), touch(0, domain.ChannelDirect)}

	attributed, err := Allocate(domain.ModelTimeDecay, tps, 100, convertedAt, 7)

	require.NoError(t, err)
	assert.InDelta(t, 0.28, attributed[0].Weight, 0.01)
	assert.InDelta(t, 0.72, attributed[1].Weight, 0.01)
	assert.InDelta(t, 100, attributed[0].AttributedValue+attributed[1].AttributedValue, 1e-9)
}

func TestAllocate_PositionBased(t *testing.T) {
	tps := []domain.Touchpoint{
		touch(8, domain.ChannelEmail), touch(6, domain.ChannelDirect),
		touch(4, domain.ChannelReferral), touch(1, domain.ChannelGoogleAds),
	}

	attributed, err := Allocate(domain.ModelPositionBased, tps, 100, convertedAt, 7)

	require.NoError(t, err)
	assert.InDelta(t, 40, attributed[0].AttributedValue, 1e-9)
	assert.InDelta(t, 10, attributed[1].AttributedValue, 1e-9)
	assert.InDelta(t, 10, attributed[2].AttributedValue, 1e-9)
	assert.InDelta(t, 40, attributed[3].AttributedValue, 1e-9)

	two, err := Allocate(domain.ModelPositionBased, tps[:2], 100, convertedAt, 7)
	require.NoError(t, err)
	assert.InDelta(t, 50, two[0].AttributedValue, 1e-9)
	assert.InDelta(t, 50, two[1].AttributedValue, 1e-9)
}

func TestAllocate_DataDrivenFollowsChannelScores(t *testing.T) {
	tps := []domain.Touchpoint{touch(3, domain.ChannelEmail), touch(1, domain.ChannelDirect)}

	attributed, err := Allocate(domain.ModelDataDriven, tps, 200, convertedAt, 7)

	require.NoError(t, err)
	assert.InDelta(t, 1.3/2.0, attributed[0].Weight, 1e-9)
	assert.InDelta(t, 0.7/2.0, attributed[1].Weight, 1e-9)
}

func TestAllocate_EmptyJourney(t *testing.T) {
	attributed, err := Allocate(domain.ModelLinear, nil, 50, convertedAt, 7)
	require.NoError(t, err)
	assert.Empty(t, attributed)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("time_decay")
	require.NoError(t, err)
	assert.Equal(t, domain.ModelTimeDecay, m)

	_, err = ParseModel("markov")
	assert.ErrorIs(t, err, ErrUnknownModel)

	assert.Len(t, Models(), 6)
	assert.Equal(t, "Position Based (U-Shaped)", ModelName(domain.ModelPositionBased))
}

func TestClassifyChannel(t *testing.T) {
	cases := []struct {
		name     string
		ids      domain.ClickIDs
		utm      domain.UTM
		referrer string
		want     domain.Channel
	}{
		{"gclid wins", domain.ClickIDs{Gclid: "g", Fbclid: "f"}, domain.UTM{Medium: "email"}, "", domain.ChannelGoogleAds},
		{"fbclid before ttclid", domain.ClickIDs{Fbclid: "f", Ttclid: "t"}, domain.UTM{}, "", domain.ChannelFacebookAds},
		{"li_fat_id", domain.ClickIDs{LiFatID: "l"}, domain.UTM{}, "", domain.ChannelLinkedInAds},
		{"email medium", domain.ClickIDs{}, domain.UTM{Source: "newsletter", Medium: "Email"}, "", domain.ChannelEmail},
		{"paid", domain.ClickIDs{}, domain.UTM{Source: "bing", Medium: "cpc"}, "", domain.ChannelPaidSearch},
		{"organic google", domain.ClickIDs{}, domain.UTM{Source: "google", Medium: "organic"}, "", domain.ChannelOrganicSearch},
		{"social", domain.ClickIDs{}, domain.UTM{Source: "Instagram"}, "", domain.ChannelOrganicSocial},
		{"referral", domain.ClickIDs{}, domain.UTM{}, "https://blog.example", domain.ChannelReferral},
		{"direct", domain.ClickIDs{}, domain.UTM{}, "", domain.ChannelDirect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyChannel(tc.ids, tc.utm, tc.referrer))
		})
	}
}

type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) FindEvent(ctx context.Context, id uint) (domain.Event, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Event), args.Bool(1), args.Error(2)
}

func (m *MockEventRepository) EventsBetween(ctx context.Context, customerID uint, from, before time.Time) ([]domain.Event, error) {
	args := m.Called(ctx, customerID, from, before)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventRepository) ConvertedEvents(ctx context.Context, tenantID *uint, start, end time.Time, positiveValueOnly bool) ([]domain.Event, error) {
	args := m.Called(ctx, tenantID, start, end, positiveValueOnly)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventRepository) CustomerEvents(ctx context.Context, customerID uint) ([]domain.Event, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).([]domain.Event), args.Error(1)
}

func (m *MockEventRepository) CustomerExists(ctx context.Context, customerID uint) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

func uintPtr(v uint) *uint { return &v }

func event(id uint, daysBefore int, utm domain.UTM) domain.Event {
	return domain.Event{
		ID:         id,
		CustomerID: uintPtr(1),
		Type:       domain.EventPageView,
		UTM:        utm,
		OccurredAt: convertedAt.AddDate(0, 0, -daysBefore),
	}
}

func TestAttribute_UsesWindowBeforeConversion(t *testing.T) {
	repo := new(MockEventRepository)
	conversion := domain.Event{ID: 50, CustomerID: uintPtr(1), Type: domain.EventPurchase, IsConverted: true, ConversionValue: 100, OccurredAt: convertedAt}
	repo.On("FindEvent", mock.Anything, uint(50)).Return(conversion, true, nil)
	repo.On("EventsBetween", mock.Anything, uint(1), convertedAt.AddDate(0, 0, -30), convertedAt).Return([]domain.Event{
		event(1, 10, domain.UTM{Source: "newsletter", Medium: "email"}),
		event(2, 0, domain.UTM{}),
	}, nil)

	out, err := NewAttributionService(repo, Config{}).Attribute(context.Background(), 50, domain.ModelTimeDecay)

	require.NoError(t, err)
	require.Len(t, out.Attributed, 2)
	assert.Equal(t, domain.ChannelEmail, out.Attributed[0].Channel)
	assert.Equal(t, "direct", out.Attributed[1].Source)
	assert.InDelta(t, 72, out.Attributed[1].AttributedValue, 1)
}

func TestAttribute_AnonymousConversionHasNoCredit(t *testing.T) {
	repo := new(MockEventRepository)
	repo.On("FindEvent", mock.Anything, uint(9)).Return(domain.Event{ID: 9, ConversionValue: 10, OccurredAt: convertedAt}, true, nil)

	out, err := NewAttributionService(repo, Config{}).Attribute(context.Background(), 9, domain.ModelLinear)

	require.NoError(t, err)
	assert.Empty(t, out.Attributed)
	repo.AssertNotCalled(t, "EventsBetween")
}

func TestCompareModels_FlagsChannelVariance(t *testing.T) {
	repo := new(MockEventRepository)
	start, end := convertedAt.AddDate(0, -1, 0), convertedAt
	conversion := domain.Event{ID: 50, CustomerID: uintPtr(1), IsConverted: true, ConversionValue: 100, OccurredAt: convertedAt}
	repo.On("ConvertedEvents", mock.Anything, (*uint)(nil), start, end, true).Return([]domain.Event{conversion}, nil)
	repo.On("EventsBetween", mock.Anything, uint(1), mock.Anything, convertedAt).Return([]domain.Event{
		event(1, 20, domain.UTM{Source: "newsletter", Medium: "email"}),
		event(2, 1, domain.UTM{}),
	}, nil)

	out, err := NewAttributionService(repo, Config{}).CompareModels(context.Background(), start, end, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalConversions)
	assert.Len(t, out.Models, 5)
	assert.InDelta(t, 100, out.ChannelValues["email"][domain.ModelFirstTouch], 1e-9)
	assert.InDelta(t, 50, out.ChannelValues["email"][domain.ModelLinear], 1e-9)

	require.NotEmpty(t, out.Insights)
	var email *domain.ModelInsight
	for i := range out.Insights {
		if out.Insights[i].Channel == "email" {
			email = &out.Insights[i]
		}
	}
	require.NotNil(t, email)
	assert.Greater(t, email.VariancePct, 50.0)
	assert.Equal(t, "Consider using multiple models for budgeting decisions", email.Recommendation)
}

func TestChannelReport(t *testing.T) {
	repo := new(MockEventRepository)
	start, end := convertedAt.AddDate(0, -1, 0), convertedAt
	conversion := domain.Event{ID: 50, CustomerID: uintPtr(1), IsConverted: true, ConversionValue: 90, OccurredAt: convertedAt}
	repo.On("ConvertedEvents", mock.Anything, (*uint)(nil), start, end, false).Return([]domain.Event{conversion}, nil)
	repo.On("EventsBetween", mock.Anything, uint(1), mock.Anything, convertedAt).Return([]domain.Event{
		event(1, 9, domain.UTM{Source: "newsletter", Medium: "email"}),
		event(2, 5, domain.UTM{Source: "facebook"}),
		event(3, 1, domain.UTM{Source: "newsletter", Medium: "email"}),
	}, nil)

	report, err := NewAttributionService(repo, Config{}).ChannelReport(context.Background(), domain.ModelLinear, start, end, nil)

	require.NoError(t, err)
	require.Len(t, report.Channels, 2)
	email := report.Channels[0]
	assert.Equal(t, domain.ChannelEmail, email.Channel)
	assert.InDelta(t, 60, email.Revenue, 1e-9)
	assert.Equal(t, 2, email.Touchpoints)
	assert.Equal(t, 1, email.FirstTouches)
	assert.Equal(t, 1, email.LastTouches)
	assert.Equal(t, 1, report.Channels[1].AssistedConversions)
}

func TestAnalyzeJourney(t *testing.T) {
	repo := new(MockEventRepository)
	repo.On("CustomerExists", mock.Anything, uint(1)).Return(true, nil)
	purchase := event(3, 0, domain.UTM{})
	purchase.IsConverted = true
	purchase.ConversionValue = 75
	repo.On("CustomerEvents", mock.Anything, uint(1)).Return([]domain.Event{
		event(1, 3, domain.UTM{Source: "google", Medium: "cpc"}),
		event(2, 1, domain.UTM{}),
		purchase,
	}, nil)

	journey, err := NewAttributionService(repo, Config{}).AnalyzeJourney(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 3, journey.TotalTouchpoints)
	assert.Equal(t, 1, journey.TotalConversions)
	assert.InDelta(t, 75, journey.TotalValue, 1e-9)
	assert.Equal(t, 2, journey.ChannelDistribution[domain.ChannelDirect])
	assert.Equal(t, domain.ChannelPaidSearch, journey.FirstTouch.Channel)
	assert.Equal(t, "3.0 days", journey.AvgTimeToConversion)
}

func TestAnalyzeJourney_UnknownCustomer(t *testing.T) {
	repo := new(MockEventRepository)
	repo.On("CustomerExists", mock.Anything, uint(4)).Return(false, nil)

	_, err := NewAttributionService(repo, Config{}).AnalyzeJourney(context.Background(), 4)

	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "5 hours", formatElapsed(5*time.Hour+20*time.Minute))
	assert.Equal(t, "1.5 days", formatElapsed(36*time.Hour))
}
