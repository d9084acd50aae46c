package domain

import (
	"time"

	"gorm.io/datatypes"
)

type AdPlatform string

const (
	PlatformGoogleAds AdPlatform = "google_ads"
	PlatformMeta      AdPlatform = "meta"
	PlatformTikTok    AdPlatform = "tiktok"
	PlatformLinkedIn  AdPlatform = "linkedin"
)

// ClickID picks the click identifier this platform matches conversions on.
func (p AdPlatform) ClickID(ids ClickIDs) string {
	switch p {
	case PlatformGoogleAds:
		return ids.Gclid
	case PlatformMeta:
		return ids.Fbclid
	case PlatformTikTok:
		return ids.Ttclid
	case PlatformLinkedIn:
		return ids.LiFatID
	}
	return ""
}

type AdAccount struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	TenantID           *uint      `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	Platform           AdPlatform `gorm:"column:platform;not null" json:"platform"`
	AccountID          string     `gorm:"column:account_id;not null" json:"account_id"`
	AccountName        string     `gorm:"column:account_name" json:"account_name"`
	ConversionActionID string     `gorm:"column:conversion_action_id" json:"conversion_action_id,omitempty"`
	PixelID            string     `gorm:"column:pixel_id" json:"pixel_id,omitempty"`
	IsActive           bool       `gorm:"column:is_active;default:true" json:"is_active"`
	ReceiveConversions bool       `gorm:"column:receive_conversions;default:true" json:"receive_conversions"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AdAccount) TableName() string {
	return "ad_accounts"
}

type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionSent      ConversionStatus = "sent"
	ConversionConfirmed ConversionStatus = "confirmed"
	ConversionFailed    ConversionStatus = "failed"
)

// AdUserData is the hashed identity block sent with a conversion.
type AdUserData struct {
	Em      string `json:"em,omitempty"`
	Ph      string `json:"ph,omitempty"`
	Fn      string `json:"fn,omitempty"`
	Ln      string `json:"ln,omitempty"`
	Ct      string `json:"ct,omitempty"`
	St      string `json:"st,omitempty"`
	Zp      string `json:"zp,omitempty"`
	Country string `json:"country,omitempty"`
}

// PlatformPayload is the per-network shape of a conversion. Only the fields
// of the target platform are populated.
type PlatformPayload struct {
	Platform         AdPlatform `json:"platform"`
	EventName        string     `json:"event_name"`
	EventTime        int64      `json:"event_time"`
	ConversionAction string     `json:"conversion_action,omitempty"`
	Gclid            string     `json:"gclid,omitempty"`
	Fbc              string     `json:"fbc,omitempty"`
	Ttclid           string     `json:"ttclid,omitempty"`
	LiFatID          string     `json:"li_fat_id,omitempty"`
	ActionSource     string     `json:"action_source,omitempty"`
	EventSourceURL   string     `json:"event_source_url,omitempty"`
	UserIdentifiers  []string   `json:"user_identifiers,omitempty"`
	Value            float64    `json:"value"`
	Currency         string     `json:"currency"`
	OrderID          string     `json:"order_id,omitempty"`
}

// Conversion is the normalized outbound record for one (ad account, event, profile).
type Conversion struct {
	ID             uint                                `gorm:"primaryKey" json:"id"`
	ConversionID   string                              `gorm:"column:conversion_id;uniqueIndex;size:26" json:"conversion_id"`
	AdAccountID    uint                                `gorm:"column:ad_account_id;index" json:"ad_account_id"`
	Platform       AdPlatform                          `gorm:"column:platform;index" json:"platform"`
	CustomerID     *uint                               `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	EventID        uint                                `gorm:"column:event_id;index" json:"event_id"`
	TenantID       *uint                               `gorm:"column:tenant_id" json:"tenant_id,omitempty"`
	EventType      EventType                           `gorm:"column:event_type" json:"event_type"`
	ConversionTime time.Time                           `gorm:"column:conversion_time" json:"conversion_time"`
	Value          float64                             `gorm:"column:value;type:numeric" json:"value"`
	Currency       string                              `gorm:"column:currency;size:3" json:"currency"`
	OrderID        *uint                               `gorm:"column:order_id" json:"order_id,omitempty"`
	ClickID        string                              `gorm:"column:click_id" json:"click_id,omitempty"`
	UserData       datatypes.JSONType[AdUserData]      `gorm:"column:user_data" json:"user_data"`
	Payload        datatypes.JSONType[PlatformPayload] `gorm:"column:payload" json:"payload"`
	Status         ConversionStatus                    `gorm:"column:status;default:pending;index" json:"status"`
	RetryCount     int                                 `gorm:"column:retry_count;default:0" json:"retry_count"`
	ErrorMessage   string                              `gorm:"column:error_message" json:"error_message,omitempty"`
	APIResponse    string                              `gorm:"column:api_response" json:"api_response,omitempty"`
	SentAt         *time.Time                          `gorm:"column:sent_at" json:"sent_at,omitempty"`
	ConfirmedAt    *time.Time                          `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt      time.Time                           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Conversion) TableName() string {
	return "conversions"
}

type ConversionRunResult struct {
	Processed  int                `json:"processed"`
	Success    int                `json:"success"`
	Failed     int                `json:"failed"`
	ByPlatform map[AdPlatform]int `json:"by_platform"`
}

type RealTimeStats struct {
	ActiveSessions  int64     `json:"active_sessions"`
	EventsLastHour  int64     `json:"events_last_hour"`
	ConversionsHour int64     `json:"conversions_last_hour"`
	RevenueLastHour float64   `json:"revenue_last_hour"`
	GeneratedAt     time.Time `json:"generated_at"`
}
