package customer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"customerIntel/domain"
)

const anonymizedPrefix = "anonymized_"

// Touch is what an identified visit tells the profile about itself.
type Touch struct {
	domain.UTM
	domain.ClickIDs
	Referrer    string
	LandingPage string
	DeviceID    string
	DeviceType  string
	Browser     string
	OS          string
	CountryCode string
	Region      string
	City        string
	PostalCode  string
	TenantID    *uint
}

// daysSince counts whole days between t and now. ok is false when t is nil.
func daysSince(t *time.Time, now time.Time) (days int, ok bool) {
	if t == nil {
		return 0, false
	}
	d := int(now.Sub(*t).Hours() / 24)
	if d < 0 {
		d = 0
	}
	return d, true
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// RecordVisit applies one visit. First-touch fields are written once,
// last-touch fields whenever the visit carries a source.
func RecordVisit(p *domain.CustomerProfile, t Touch, now time.Time) {
	p.LastSeenAt = timePtr(now)
	p.TotalVisits++

	if p.FirstSeenAt == nil {
		p.FirstSeenAt = timePtr(now)
		AssignCohort(p)
	}

	if t.Source != "" {
		if p.FirstSource == "" {
			p.FirstSource = t.Source
			p.FirstMedium = t.Medium
			p.FirstCampaign = t.Campaign
		}
		p.LastSource = t.Source
		p.LastMedium = t.Medium
		p.LastCampaign = t.Campaign
	}

	if t.Referrer != "" {
		if p.FirstReferrer == "" {
			p.FirstReferrer = t.Referrer
		}
		p.LastReferrer = t.Referrer
	}
	if p.FirstLandingPage == "" {
		p.FirstLandingPage = t.LandingPage
	}

	fillClickID(&p.FirstGclid, &p.LastGclid, t.Gclid)
	fillClickID(&p.FirstFbclid, &p.LastFbclid, t.Fbclid)
	fillClickID(&p.FirstTtclid, &p.LastTtclid, t.Ttclid)
	fillClickID(&p.FirstLiFatID, &p.LastLiFatID, t.LiFatID)

	setIfPresent(&p.DeviceType, t.DeviceType)
	setIfPresent(&p.Browser, t.Browser)
	setIfPresent(&p.OS, t.OS)
	setIfPresent(&p.CountryCode, t.CountryCode)
	setIfPresent(&p.Region, t.Region)
	setIfPresent(&p.City, t.City)
	setIfPresent(&p.PostalCode, t.PostalCode)

	if t.TenantID != nil {
		AddTenant(p, *t.TenantID)
	}
	if t.DeviceID != "" {
		LinkDevice(p, t.DeviceID)
	}
}

func fillClickID(first, last *string, value string) {
	if value == "" {
		return
	}
	if *first == "" {
		*first = value
	}
	*last = value
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// RecordPurchase folds one completed order into the purchase aggregates.
func RecordPurchase(p *domain.CustomerProfile, value float64, tickets int, tenantID *uint, now time.Time) {
	p.TotalOrders++
	p.TotalTickets += tickets
	p.TotalSpent += value
	p.AverageOrderValue = p.TotalSpent / float64(p.TotalOrders)
	p.LastPurchaseAt = timePtr(now)

	if p.FirstPurchaseAt == nil {
		p.FirstPurchaseAt = timePtr(now)
	}

	if p.TotalOrders > 1 {
		days, _ := daysSince(p.FirstPurchaseAt, now)
		freq := days / (p.TotalOrders - 1)
		p.PurchaseFrequencyDays = &freq
	}

	if tenantID != nil {
		AddTenant(p, *tenantID)
	}

	p.LifetimeValue = p.TotalSpent
	UpdateSegment(p, now)
}

// AddTenant records that the profile was seen on a tenant.
func AddTenant(p *domain.CustomerProfile, tenantID uint) {
	if slices.Contains(p.TenantIDs, tenantID) {
		return
	}
	p.TenantIDs = append(p.TenantIDs, tenantID)
	p.TenantCount = len(p.TenantIDs)
	if p.FirstTenantID == nil {
		id := tenantID
		p.FirstTenantID = &id
	}
}

func LinkDevice(p *domain.CustomerProfile, deviceID string) {
	if slices.Contains(p.LinkedDeviceIDs, deviceID) {
		return
	}
	p.LinkedDeviceIDs = append(p.LinkedDeviceIDs, deviceID)
	if p.PrimaryDeviceID == "" {
		p.PrimaryDeviceID = deviceID
	}
}

const (
	SegmentNew             = "New"
	SegmentEngagedNonBuyer = "Engaged Non-Buyer"
	SegmentFirstTimeBuyer  = "First-Time Buyer"
	SegmentVIP             = "VIP"
	SegmentLapsedVIP       = "Lapsed VIP"
	SegmentRepeatBuyer     = "Repeat Buyer"
	SegmentAtRisk          = "At Risk"
)

// UpdateSegment derives the coarse lifecycle segment from orders and spend.
func UpdateSegment(p *domain.CustomerProfile, now time.Time) {
	sinceLast, _ := daysSince(p.LastPurchaseAt, now)

	switch {
	case p.TotalOrders == 0:
		if p.TotalVisits > 5 {
			p.CustomerSegment = SegmentEngagedNonBuyer
		} else {
			p.CustomerSegment = SegmentNew
		}
	case p.TotalOrders == 1:
		p.CustomerSegment = SegmentFirstTimeBuyer
	case p.TotalOrders >= 5 || p.TotalSpent >= 500:
		if sinceLast > 180 {
			p.CustomerSegment = SegmentLapsedVIP
		} else {
			p.CustomerSegment = SegmentVIP
		}
	default:
		if sinceLast > 90 {
			p.CustomerSegment = SegmentAtRisk
		} else {
			p.CustomerSegment = SegmentRepeatBuyer
		}
	}
}

// CohortKeys returns the month (YYYY-MM) and ISO week (YYYY-Www) of t.
func CohortKeys(t time.Time) (month, week string) {
	year, w := t.ISOWeek()
	return t.Format("2006-01"), fmt.Sprintf("%d-W%02d", year, w)
}

// AssignCohort keys the profile by its first-seen month and week.
func AssignCohort(p *domain.CustomerProfile) {
	if p.FirstSeenAt == nil {
		return
	}
	p.CohortMonth, p.CohortWeek = CohortKeys(*p.FirstSeenAt)
}

// Anonymize scrubs PII from the profile. Related events and sessions are
// scrubbed by the store.
func Anonymize(p *domain.CustomerProfile, now time.Time) {
	p.Email = ""
	p.EmailHash = anonymizedPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	p.Phone = ""
	p.PhoneHash = ""
	p.FirstName = ""
	p.LastName = ""
	p.City = ""
	p.PostalCode = ""
	p.IsAnonymized = true
	p.AnonymizedAt = timePtr(now)
}

// AnonymizedVisitorID replaces the visitor id on an anonymized profile's sessions.
func AnonymizedVisitorID(customerID uint) string {
	return fmt.Sprintf("%s%d", anonymizedPrefix, customerID)
}

// RecordActivity refreshes last-seen and the click ids for a non-visit action.
func RecordActivity(p *domain.CustomerProfile, t Touch, now time.Time) {
	p.LastSeenAt = timePtr(now)
	fillClickID(&p.FirstGclid, &p.LastGclid, t.Gclid)
	fillClickID(&p.FirstFbclid, &p.LastFbclid, t.Fbclid)
	fillClickID(&p.FirstTtclid, &p.LastTtclid, t.Ttclid)
	fillClickID(&p.FirstLiFatID, &p.LastLiFatID, t.LiFatID)
	if t.TenantID != nil {
		AddTenant(p, *t.TenantID)
	}
}

// MarkCartAbandoned flags an open cart until a purchase clears it.
func MarkCartAbandoned(p *domain.CustomerProfile, now time.Time) {
	p.HasCartAbandoned = true
	p.LastCartAbandonedAt = timePtr(now)
}
