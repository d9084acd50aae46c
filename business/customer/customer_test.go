package customer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customerIntel/domain"
	"customerIntel/pkg/piicrypt"
)

var refNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := refNow.AddDate(0, 0, -n)
	return &t
}

func uintPtr(v uint) *uint { return &v }

func TestHashEmail_Normalizes(t *testing.T) {
	assert.Equal(t, HashEmail("jane@example.com"), HashEmail("  Jane@Example.COM "))
	assert.Len(t, HashEmail("jane@example.com"), 64)
	assert.Empty(t, HashEmail("   "))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+40712345678", NormalizePhone("+40 (712) 345-678"))
	assert.Equal(t, HashPhone("+40712345678"), HashPhone("+40 712 345 678"))
	assert.Empty(t, HashPhone("n/a"))
}

func TestSetEmail_StoresCiphertextAndHash(t *testing.T) {
	cipher, err := piicrypt.New("test-secret")
	require.NoError(t, err)

	var p domain.CustomerProfile
	require.NoError(t, SetEmail(&p, "Jane@Example.com", cipher))
	require.NoError(t, SetName(&p, "Jane", "Doe", cipher))

	assert.NotEqual(t, "Jane@Example.com", p.Email)
	assert.Equal(t, HashEmail("jane@example.com"), p.EmailHash)

	pii, err := RevealPII(p, cipher)
	require.NoError(t, err)
	assert.Equal(t, "Jane@Example.com", pii.Email)
	assert.Equal(t, "Jane", pii.FirstName)

	name, err := FullName(p, cipher)
	require.NoError(t, err)
	assert.Equal(t, "jane doe", name)
}

func TestHashedAdData(t *testing.T) {
	cipher, err := piicrypt.New("test-secret")
	require.NoError(t, err)

	p := domain.CustomerProfile{City: "Cluj", Region: "CJ", PostalCode: "400001", CountryCode: "RO"}
	require.NoError(t, SetEmail(&p, "a@b.ro", cipher))
	require.NoError(t, SetName(&p, "Ana", "", cipher))

	data, err := HashedAdData(p, cipher)
	require.NoError(t, err)
	assert.Equal(t, p.EmailHash, data.Em)
	assert.Equal(t, sha256Hex("ana"), data.Fn)
	assert.Empty(t, data.Ln)
	assert.Equal(t, sha256Hex("cluj"), data.Ct)
	assert.Equal(t, "ro", data.Country)
}

func TestRecordVisit_FirstTouchKeptLastTouchUpdated(t *testing.T) {
	var p domain.CustomerProfile

	RecordVisit(&p, Touch{
		UTM:      domain.UTM{Source: "google", Medium: "cpc", Campaign: "spring"},
		ClickIDs: domain.ClickIDs{Gclid: "g-1"},
		TenantID: uintPtr(4),
		DeviceID: "dev-a",
	}, refNow.AddDate(0, 0, -3))

	RecordVisit(&p, Touch{
		UTM:      domain.UTM{Source: "newsletter", Medium: "email", Campaign: "june"},
		ClickIDs: domain.ClickIDs{Gclid: "g-2", Fbclid: "f-1"},
		TenantID: uintPtr(4),
		DeviceID: "dev-b",
	}, refNow)

	assert.Equal(t, 2, p.TotalVisits)
	assert.Equal(t, "google", p.FirstSource)
	assert.Equal(t, "spring", p.FirstCampaign)
	assert.Equal(t, "newsletter", p.LastSource)
	assert.Equal(t, "g-1", p.FirstGclid)
	assert.Equal(t, "g-2", p.LastGclid)
	assert.Equal(t, "f-1", p.FirstFbclid)
	assert.Equal(t, refNow, *p.LastSeenAt)
	assert.Equal(t, refNow.AddDate(0, 0, -3), *p.FirstSeenAt)
	assert.Equal(t, []uint{4}, []uint(p.TenantIDs))
	assert.Equal(t, 1, p.TenantCount)
	assert.Equal(t, "dev-a", p.PrimaryDeviceID)
	assert.Len(t, p.LinkedDeviceIDs, 2)
	assert.Equal(t, "2025-06", p.CohortMonth)
}

func TestRecordVisit_NoSourceLeavesLastTouch(t *testing.T) {
	p := domain.CustomerProfile{FirstSource: "google", LastSource: "google"}
	RecordVisit(&p, Touch{}, refNow)
	assert.Equal(t, "google", p.LastSource)
}

func TestRecordPurchase_Aggregates(t *testing.T) {
	p := domain.CustomerProfile{}

	RecordPurchase(&p, 40, 2, uintPtr(1), refNow.AddDate(0, 0, -20))
	assert.Equal(t, 1, p.TotalOrders)
	assert.Nil(t, p.PurchaseFrequencyDays)
	assert.Equal(t, SegmentFirstTimeBuyer, p.CustomerSegment)

	RecordPurchase(&p, 60, 1, uintPtr(2), refNow)
	assert.Equal(t, 2, p.TotalOrders)
	assert.Equal(t, 3, p.TotalTickets)
	assert.InDelta(t, 100, p.TotalSpent, 1e-9)
	assert.InDelta(t, 50, p.AverageOrderValue, 1e-9)
	assert.InDelta(t, 100, p.LifetimeValue, 1e-9)
	require.NotNil(t, p.PurchaseFrequencyDays)
	assert.Equal(t, 20, *p.PurchaseFrequencyDays)
	assert.Equal(t, 2, p.TenantCount)
	assert.Equal(t, uint(1), *p.FirstTenantID)
	assert.Equal(t, SegmentRepeatBuyer, p.CustomerSegment)
}

func TestUpdateSegment(t *testing.T) {
	cases := []struct {
		name string
		p    domain.CustomerProfile
		want string
	}{
		{"new", domain.CustomerProfile{TotalVisits: 2}, SegmentNew},
		{"engaged non-buyer", domain.CustomerProfile{TotalVisits: 6}, SegmentEngagedNonBuyer},
		{"first time", domain.CustomerProfile{TotalOrders: 1, LastPurchaseAt: daysAgo(5)}, SegmentFirstTimeBuyer},
		{"vip by spend", domain.CustomerProfile{TotalOrders: 2, TotalSpent: 600, LastPurchaseAt: daysAgo(10)}, SegmentVIP},
		{"lapsed vip", domain.CustomerProfile{TotalOrders: 6, TotalSpent: 100, LastPurchaseAt: daysAgo(200)}, SegmentLapsedVIP},
		{"repeat", domain.CustomerProfile{TotalOrders: 3, TotalSpent: 90, LastPurchaseAt: daysAgo(30)}, SegmentRepeatBuyer},
		{"at risk", domain.CustomerProfile{TotalOrders: 3, TotalSpent: 90, LastPurchaseAt: daysAgo(91)}, SegmentAtRisk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			UpdateSegment(&p, refNow)
			assert.Equal(t, tc.want, p.CustomerSegment)
		})
	}
}

func TestCohortKeys_UsesISOWeek(t *testing.T) {
	month, week := CohortKeys(time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2021-01", month)
	assert.Equal(t, "2020-W53", week)

	_, week = CohortKeys(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-W10", week)
}

func TestScoreRFM(t *testing.T) {
	p := domain.CustomerProfile{TotalOrders: 10, TotalSpent: 1200, LastPurchaseAt: daysAgo(3)}
	ScoreRFM(&p, refNow)
	assert.Equal(t, 15, p.RFMScore)
	assert.Equal(t, "Champions", p.RFMSegment)

	never := domain.CustomerProfile{}
	ScoreRFM(&never, refNow)
	assert.Equal(t, 1, never.RFMRecencyScore)
	assert.Equal(t, "Lost", never.RFMSegment)
}

func TestRFMSegment_FirstListWins(t *testing.T) {
	assert.Equal(t, "Potential Loyalist", RFMSegment("443"))
	assert.Equal(t, "About To Sleep", RFMSegment("231"))
	assert.Equal(t, "Other", RFMSegment("999"))
}

func TestAnonymize(t *testing.T) {
	p := domain.CustomerProfile{Email: "x", EmailHash: "h", Phone: "y", PhoneHash: "ph", FirstName: "f", City: "Iasi"}
	Anonymize(&p, refNow)

	assert.True(t, p.IsAnonymized)
	assert.Empty(t, p.Email)
	assert.Empty(t, p.PhoneHash)
	assert.Empty(t, p.City)
	assert.Len(t, p.EmailHash, len(anonymizedPrefix)+32)
	assert.Equal(t, refNow, *p.AnonymizedAt)
	assert.False(t, p.Analyzable())
	assert.Equal(t, "anonymized_12", AnonymizedVisitorID(12))
}

func TestMergeInto(t *testing.T) {
	source := domain.CustomerProfile{
		ID:              7,
		UUID:            uuid.New(),
		TotalOrders:     2,
		TotalSpent:      100,
		TotalVisits:     5,
		FirstSeenAt:     daysAgo(300),
		LastSeenAt:      daysAgo(50),
		FirstPurchaseAt: daysAgo(250),
		RFMScore:        9,
		TenantIDs:       []uint{1, 3},
		PrimaryDeviceID: "dev-s",
	}
	target := domain.CustomerProfile{
		ID:              3,
		UUID:            uuid.New(),
		TotalOrders:     1,
		TotalSpent:      50,
		TotalVisits:     2,
		FirstSeenAt:     daysAgo(100),
		LastSeenAt:      daysAgo(1),
		LastPurchaseAt:  daysAgo(2),
		RFMScore:        6,
		HealthScore:     70,
		TenantIDs:       []uint{1},
		TenantCount:     1,
		LinkedDeviceIDs: []string{"dev-t"},
	}

	require.NoError(t, MergeInto(&source, &target, refNow))

	assert.Equal(t, 3, target.TotalOrders)
	assert.InDelta(t, 150, target.TotalSpent, 1e-9)
	assert.InDelta(t, 50, target.AverageOrderValue, 1e-9)
	assert.Equal(t, 7, target.TotalVisits)
	assert.Equal(t, *daysAgo(300), *target.FirstSeenAt)
	assert.Equal(t, *daysAgo(1), *target.LastSeenAt)
	assert.Equal(t, *daysAgo(250), *target.FirstPurchaseAt)
	assert.Equal(t, 9, target.RFMScore)
	assert.Equal(t, 70, target.HealthScore)
	assert.ElementsMatch(t, []uint{1, 3}, []uint(target.TenantIDs))
	assert.Equal(t, 2, target.TenantCount)
	assert.ElementsMatch(t, []string{"dev-t", "dev-s"}, []string(target.LinkedDeviceIDs))
	assert.Contains(t, []string(target.LinkedCustomerUUIDs), source.UUID.String())
	assert.Equal(t, source.FirstSeenAt.Format("2006-01"), target.CohortMonth)

	assert.True(t, source.IsMerged)
	assert.Equal(t, uint(3), *source.MergedIntoID)
}

func TestMergeInto_Guards(t *testing.T) {
	a := domain.CustomerProfile{ID: 1}
	assert.ErrorIs(t, MergeInto(&a, &a, refNow), ErrSelfMerge)

	merged := domain.CustomerProfile{ID: 2, IsMerged: true}
	assert.ErrorIs(t, MergeInto(&merged, &a, refNow), ErrAlreadyMerged)
	assert.ErrorIs(t, MergeInto(&a, &merged, refNow), ErrTargetMerged)
}

func TestMergeInto_RejectsAnonymizedProfiles(t *testing.T) {
	live := domain.CustomerProfile{ID: 1, TotalOrders: 2, TotalSpent: 80}
	erased := domain.CustomerProfile{ID: 2, TotalOrders: 5, TotalSpent: 300, IsAnonymized: true}

	assert.ErrorIs(t, MergeInto(&erased, &live, refNow), ErrAnonymized)
	assert.ErrorIs(t, MergeInto(&live, &erased, refNow), ErrAnonymized)

	assert.Equal(t, 2, live.TotalOrders)
	assert.False(t, live.IsMerged)
	assert.False(t, erased.IsMerged)
	assert.Nil(t, erased.MergedIntoID)
}
