package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CustomerProfile is the durable identity and aggregate record for one person.
// Email, Phone, FirstName and LastName hold ciphertext; lookups go through the hashes.
type CustomerProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null" json:"uuid"`
	VisitorID string    `gorm:"column:visitor_id;index" json:"visitor_id,omitempty"`

	Email     string `gorm:"column:email;type:text" json:"-"`
	EmailHash string `gorm:"column:email_hash;size:80;index" json:"email_hash,omitempty"`
	Phone     string `gorm:"column:phone;type:text" json:"-"`
	PhoneHash string `gorm:"column:phone_hash;size:64;index" json:"phone_hash,omitempty"`
	FirstName string `gorm:"column:first_name;type:text" json:"-"`
	LastName  string `gorm:"column:last_name;type:text" json:"-"`

	CountryCode string `gorm:"column:country_code;size:2" json:"country_code,omitempty"`
	Region      string `gorm:"column:region" json:"region,omitempty"`
	City        string `gorm:"column:city" json:"city,omitempty"`
	PostalCode  string `gorm:"column:postal_code" json:"postal_code,omitempty"`

	FirstSource      string `gorm:"column:first_source" json:"first_source,omitempty"`
	FirstMedium      string `gorm:"column:first_medium" json:"first_medium,omitempty"`
	FirstCampaign    string `gorm:"column:first_campaign" json:"first_campaign,omitempty"`
	FirstReferrer    string `gorm:"column:first_referrer" json:"first_referrer,omitempty"`
	FirstLandingPage string `gorm:"column:first_landing_page" json:"first_landing_page,omitempty"`
	LastSource       string `gorm:"column:last_source" json:"last_source,omitempty"`
	LastMedium       string `gorm:"column:last_medium" json:"last_medium,omitempty"`
	LastCampaign     string `gorm:"column:last_campaign" json:"last_campaign,omitempty"`
	LastReferrer     string `gorm:"column:last_referrer" json:"last_referrer,omitempty"`

	FirstGclid   string `gorm:"column:first_gclid" json:"first_gclid,omitempty"`
	LastGclid    string `gorm:"column:last_gclid" json:"last_gclid,omitempty"`
	FirstFbclid  string `gorm:"column:first_fbclid" json:"first_fbclid,omitempty"`
	LastFbclid   string `gorm:"column:last_fbclid" json:"last_fbclid,omitempty"`
	FirstTtclid  string `gorm:"column:first_ttclid" json:"first_ttclid,omitempty"`
	LastTtclid   string `gorm:"column:last_ttclid" json:"last_ttclid,omitempty"`
	FirstLiFatID string `gorm:"column:first_li_fat_id" json:"first_li_fat_id,omitempty"`
	LastLiFatID  string `gorm:"column:last_li_fat_id" json:"last_li_fat_id,omitempty"`

	FirstSeenAt         *time.Time `gorm:"column:first_seen_at" json:"first_seen_at,omitempty"`
	LastSeenAt          *time.Time `gorm:"column:last_seen_at;index" json:"last_seen_at,omitempty"`
	TotalVisits         int        `gorm:"column:total_visits;default:0" json:"total_visits"`
	TotalPageviews      int        `gorm:"column:total_pageviews;default:0" json:"total_pageviews"`
	TotalSessions       int        `gorm:"column:total_sessions;default:0" json:"total_sessions"`
	HasCartAbandoned    bool       `gorm:"column:has_cart_abandoned;default:false" json:"has_cart_abandoned"`
	LastCartAbandonedAt *time.Time `gorm:"column:last_cart_abandoned_at" json:"last_cart_abandoned_at,omitempty"`

	FirstPurchaseAt       *time.Time `gorm:"column:first_purchase_at" json:"first_purchase_at,omitempty"`
	LastPurchaseAt        *time.Time `gorm:"column:last_purchase_at" json:"last_purchase_at,omitempty"`
	TotalOrders           int        `gorm:"column:total_orders;default:0;index" json:"total_orders"`
	TotalTickets          int        `gorm:"column:total_tickets;default:0" json:"total_tickets"`
	TotalSpent            float64    `gorm:"column:total_spent;type:numeric;default:0" json:"total_spent"`
	AverageOrderValue     float64    `gorm:"column:average_order_value;type:numeric;default:0" json:"average_order_value"`
	LifetimeValue         float64    `gorm:"column:lifetime_value;type:numeric;default:0" json:"lifetime_value"`
	Currency              string     `gorm:"column:currency;size:3;default:EUR" json:"currency"`
	PurchaseFrequencyDays *int       `gorm:"column:purchase_frequency_days" json:"purchase_frequency_days,omitempty"`

	EmailsSent          int        `gorm:"column:emails_sent;default:0" json:"emails_sent"`
	EmailOpenRate       float64    `gorm:"column:email_open_rate;type:numeric;default:0" json:"email_open_rate"`
	EmailClickRate      float64    `gorm:"column:email_click_rate;type:numeric;default:0" json:"email_click_rate"`
	EmailUnsubscribedAt *time.Time `gorm:"column:email_unsubscribed_at" json:"email_unsubscribed_at,omitempty"`

	CustomerSegment   string   `gorm:"column:customer_segment;index" json:"customer_segment,omitempty"`
	EngagementScore   float64  `gorm:"column:engagement_score;type:numeric;default:0" json:"engagement_score"`
	RFMRecencyScore   int      `gorm:"column:rfm_recency_score;default:0" json:"rfm_recency_score"`
	RFMFrequencyScore int      `gorm:"column:rfm_frequency_score;default:0" json:"rfm_frequency_score"`
	RFMMonetaryScore  int      `gorm:"column:rfm_monetary_score;default:0" json:"rfm_monetary_score"`
	RFMScore          int      `gorm:"column:rfm_score;default:0" json:"rfm_score"`
	RFMSegment        string   `gorm:"column:rfm_segment" json:"rfm_segment,omitempty"`
	ChurnRiskScore    float64  `gorm:"column:churn_risk_score;type:numeric;default:0" json:"churn_risk_score"`
	PredictedLTV      *float64 `gorm:"column:predicted_ltv;type:numeric" json:"predicted_ltv,omitempty"`
	LTVTier           string   `gorm:"column:ltv_tier" json:"ltv_tier,omitempty"`
	HealthScore       int      `gorm:"column:health_score;default:0" json:"health_score"`
	CohortMonth       string   `gorm:"column:cohort_month;size:7;index" json:"cohort_month,omitempty"`
	CohortWeek        string   `gorm:"column:cohort_week;size:8;index" json:"cohort_week,omitempty"`
	ReferredBy        *uint    `gorm:"column:referred_by" json:"referred_by,omitempty"`

	FirstTenantID *uint                     `gorm:"column:first_tenant_id" json:"first_tenant_id,omitempty"`
	TenantIDs     datatypes.JSONSlice[uint] `gorm:"column:tenant_ids" json:"tenant_ids"`
	TenantCount   int                       `gorm:"column:tenant_count;default:0" json:"tenant_count"`

	PrimaryDeviceID     string                      `gorm:"column:primary_device_id;index" json:"primary_device_id,omitempty"`
	LinkedDeviceIDs     datatypes.JSONSlice[string] `gorm:"column:linked_device_ids" json:"linked_device_ids"`
	LinkedCustomerUUIDs datatypes.JSONSlice[string] `gorm:"column:linked_customer_uuids" json:"linked_customer_uuids"`
	DeviceType          string                      `gorm:"column:device_type" json:"device_type,omitempty"`
	Browser             string                      `gorm:"column:browser" json:"browser,omitempty"`
	OS                  string                      `gorm:"column:os" json:"os,omitempty"`

	IsMerged     bool       `gorm:"column:is_merged;default:false;index" json:"is_merged"`
	MergedIntoID *uint      `gorm:"column:merged_into_id" json:"merged_into_id,omitempty"`
	MergedAt     *time.Time `gorm:"column:merged_at" json:"merged_at,omitempty"`
	IsAnonymized bool       `gorm:"column:is_anonymized;default:false;index" json:"is_anonymized"`
	AnonymizedAt *time.Time `gorm:"column:anonymized_at" json:"anonymized_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CustomerProfile) TableName() string {
	return "customer_profiles"
}

// Analyzable reports whether the profile still takes part in analytical passes.
func (p CustomerProfile) Analyzable() bool {
	return !p.IsMerged && !p.IsAnonymized
}

// CustomerPII is the decrypted view of a profile's raw contact fields.
type CustomerPII struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// BatchResult is what every batch pass reports.
type BatchResult struct {
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// CohortType selects monthly or weekly cohorts.
type CohortType string

const (
	CohortMonthly CohortType = "month"
	CohortWeekly  CohortType = "week"
)

func ParseCohortType(s string) CohortType {
	if s == string(CohortWeekly) {
		return CohortWeekly
	}
	return CohortMonthly
}

// Column returns the profile column that holds this cohort key.
func (c CohortType) Column() string {
	if c == CohortWeekly {
		return "cohort_week"
	}
	return "cohort_month"
}

// Confidence is the shared high/medium/low label.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Priority tags factors and recommendations.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Recommendation struct {
	Action         string   `json:"action"`
	Priority       Priority `json:"priority"`
	Description    string   `json:"description"`
	ExpectedImpact string   `json:"expected_impact,omitempty"`
}

// ProfileScope narrows a batch pass over profiles. Merged and anonymized
// profiles are always excluded.
type ProfileScope struct {
	TenantID       *uint
	PurchasersOnly bool
}

// CustomerDataExport is the personal-data export of one profile.
type CustomerDataExport struct {
	UUID          string          `json:"uuid"`
	Identity      CustomerPII     `json:"identity"`
	CountryCode   string          `json:"country_code,omitempty"`
	Region        string          `json:"region,omitempty"`
	City          string          `json:"city,omitempty"`
	PostalCode    string          `json:"postal_code,omitempty"`
	FirstSeenAt   *time.Time      `json:"first_seen_at,omitempty"`
	LastSeenAt    *time.Time      `json:"last_seen_at,omitempty"`
	TotalVisits   int             `json:"total_visits"`
	TotalOrders   int             `json:"total_orders"`
	TotalSpent    float64         `json:"total_spent"`
	FirstSource   string          `json:"first_source,omitempty"`
	FirstMedium   string          `json:"first_medium,omitempty"`
	FirstCampaign string          `json:"first_campaign,omitempty"`
	Events        []ExportedEvent `json:"events"`
}

type ExportedEvent struct {
	Type      EventType `json:"type"`
	PageURL   string    `json:"page_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
