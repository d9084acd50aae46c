package domain

import "time"

type AttributionModel string

const (
	ModelFirstTouch    AttributionModel = "first_touch"
	ModelLastTouch     AttributionModel = "last_touch"
	ModelLinear        AttributionModel = "linear"
	ModelTimeDecay     AttributionModel = "time_decay"
	ModelPositionBased AttributionModel = "position_based"
	ModelDataDriven    AttributionModel = "data_driven"
)

type Channel string

const (
	ChannelGoogleAds     Channel = "google_ads"
	ChannelFacebookAds   Channel = "facebook_ads"
	ChannelTikTokAds     Channel = "tiktok_ads"
	ChannelLinkedInAds   Channel = "linkedin_ads"
	ChannelEmail         Channel = "email"
	ChannelPaidSearch    Channel = "paid_search"
	ChannelOrganicSearch Channel = "organic_search"
	ChannelOrganicSocial Channel = "organic_social"
	ChannelReferral      Channel = "referral"
	ChannelDirect        Channel = "direct"
)

type TouchPosition string

const (
	PositionFirst  TouchPosition = "first"
	PositionMiddle TouchPosition = "middle"
	PositionLast   TouchPosition = "last"
)

// Touchpoint is an event seen as a candidate for conversion credit.
type Touchpoint struct {
	EventID    uint      `json:"event_id"`
	OccurredAt time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	Channel    Channel   `json:"channel"`
	Source     string    `json:"source"`
	Medium     string    `json:"medium,omitempty"`
	Campaign   string    `json:"campaign"`
	Referrer   string    `json:"referrer,omitempty"`
	ClickIDs
}

type AttributedTouchpoint struct {
	Touchpoint
	Weight               float64       `json:"weight"`
	AttributedValue      float64       `json:"attributed_value"`
	AttributedConversion float64       `json:"attributed_conversion"`
	Position             TouchPosition `json:"position"`
}

// Attribution is one conversion's credit breakdown under one model.
type Attribution struct {
	Model             AttributionModel       `json:"model"`
	ConversionEventID uint                   `json:"conversion_event_id"`
	ConversionValue   float64                `json:"conversion_value"`
	Touchpoints       []Touchpoint           `json:"touchpoints"`
	Attributed        []AttributedTouchpoint `json:"attributed"`
}

type ValueBucket struct {
	Key         string  `json:"key"`
	Value       float64 `json:"value"`
	Conversions float64 `json:"conversions"`
}

type ModelResult struct {
	Model            AttributionModel `json:"model"`
	ModelName        string           `json:"model_name"`
	TotalConversions int              `json:"total_conversions"`
	TotalValue       float64          `json:"total_value"`
	ByChannel        []ValueBucket    `json:"by_channel"`
	BySource         []ValueBucket    `json:"by_source"`
	ByCampaign       []ValueBucket    `json:"by_campaign"`
}

type ModelInsight struct {
	Type           string  `json:"type"`
	Channel        string  `json:"channel"`
	VariancePct    float64 `json:"variance_pct"`
	Message        string  `json:"message"`
	Recommendation string  `json:"recommendation"`
}

type ModelComparison struct {
	Start            time.Time                               `json:"start"`
	End              time.Time                               `json:"end"`
	WindowDays       int                                     `json:"window_days"`
	TotalConversions int                                     `json:"total_conversions"`
	TotalValue       float64                                 `json:"total_value"`
	Models           []ModelResult                           `json:"models"`
	ChannelValues    map[string]map[AttributionModel]float64 `json:"channel_values"`
	Insights         []ModelInsight                          `json:"insights"`
}

type ChannelReportRow struct {
	Channel               Channel `json:"channel"`
	AttributedConversions float64 `json:"conversions"`
	Revenue               float64 `json:"revenue"`
	Touchpoints           int     `json:"touchpoints"`
	FirstTouches          int     `json:"first_touches"`
	LastTouches           int     `json:"last_touches"`
	AssistedConversions   int     `json:"assisted_conversions"`
	AvgTouchpoints        float64 `json:"avg_touchpoints"`
	ROAS                  float64 `json:"roas"`
}

type ChannelReport struct {
	Model    AttributionModel   `json:"model"`
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	Channels []ChannelReportRow `json:"channels"`
}

type JourneyStep struct {
	OccurredAt time.Time `json:"timestamp"`
	EventType  EventType `json:"event_type"`
	Channel    Channel   `json:"channel"`
	Source     string    `json:"source"`
	Campaign   string    `json:"campaign"`
	PageURL    string    `json:"page_url,omitempty"`
	Converted  bool      `json:"is_conversion"`
	Value      float64   `json:"value"`
}

type CustomerJourney struct {
	CustomerID          uint            `json:"customer_id"`
	Path                []JourneyStep   `json:"journey"`
	ChannelDistribution map[Channel]int `json:"channel_distribution"`
	TotalTouchpoints    int             `json:"total_touchpoints"`
	TotalConversions    int             `json:"total_conversions"`
	TotalValue          float64         `json:"total_value"`
	FirstTouch          *JourneyStep    `json:"first_touch,omitempty"`
	LastTouch           *JourneyStep    `json:"last_touch,omitempty"`
	AvgTimeToConversion string          `json:"avg_time_to_conversion,omitempty"`
}

type ModelInfo struct {
	Model       AttributionModel `json:"model"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
}
