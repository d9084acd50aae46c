package domain

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventPageView      EventType = "page_view"
	EventSessionStart  EventType = "session_start"
	EventAddToCart     EventType = "add_to_cart"
	EventBeginCheckout EventType = "begin_checkout"
	EventPurchase      EventType = "purchase"
	EventRefund        EventType = "refund"
	EventSignUp        EventType = "sign_up"
	EventLogin         EventType = "login"
	EventSearch        EventType = "search"
	EventViewItem      EventType = "view_item"
	EventShare         EventType = "share"
	EventVideoStart    EventType = "video_start"
	EventVideoComplete EventType = "video_complete"
	EventFileDownload  EventType = "file_download"
	EventCustom        EventType = "custom"
)

type EventCategory string

const (
	CategoryNavigation EventCategory = "navigation"
	CategoryEngagement EventCategory = "engagement"
	CategoryEcommerce  EventCategory = "ecommerce"
	CategoryConversion EventCategory = "conversion"
	CategoryUser       EventCategory = "user"
	CategoryMedia      EventCategory = "media"
	CategoryCustom     EventCategory = "custom"
)

var eventCategories = map[EventType]EventCategory{
	EventPageView:      CategoryNavigation,
	EventSessionStart:  CategoryNavigation,
	EventAddToCart:     CategoryEcommerce,
	EventBeginCheckout: CategoryEcommerce,
	EventPurchase:      CategoryConversion,
	EventRefund:        CategoryEcommerce,
	EventSignUp:        CategoryUser,
	EventLogin:         CategoryUser,
	EventSearch:        CategoryEngagement,
	EventViewItem:      CategoryEcommerce,
	EventShare:         CategoryEngagement,
	EventVideoStart:    CategoryMedia,
	EventVideoComplete: CategoryMedia,
	EventFileDownload:  CategoryMedia,
	EventCustom:        CategoryCustom,
}

// ParseEventType accepts only the fixed vocabulary.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := eventCategories[t]; !ok {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

func (t EventType) Category() EventCategory {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryCustom
}

// OrderSource tells which side of the platform owns the referenced order.
type OrderSource string

const (
	OrderSourceTenant      OrderSource = "tenant"
	OrderSourceMarketplace OrderSource = "marketplace"
)

// OrderRef is the single normalized order reference carried by an event.
// Both tenant-native and marketplace orders resolve to this shape at ingestion.
type OrderRef struct {
	Source      OrderSource `gorm:"column:order_source" json:"source,omitempty"`
	OrderID     *uint       `gorm:"column:order_id;index" json:"order_id,omitempty"`
	TicketCount int         `gorm:"column:ticket_count;default:0" json:"ticket_count,omitempty"`
}

func (o OrderRef) Empty() bool {
	return o.OrderID == nil
}

type LineItem struct {
	ItemID   string  `json:"item_id" validate:"required,max=128"`
	Name     string  `json:"name,omitempty" validate:"omitempty,max=256"`
	Category string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

// EventPayload is the structured, per-type detail of an event.
type EventPayload struct {
	Items       []LineItem        `json:"items,omitempty"`
	ItemID      string            `json:"item_id,omitempty"`
	SearchQuery string            `json:"search_query,omitempty"`
	Method      string            `json:"method,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Label       string            `json:"label,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// UTM groups the campaign parameters of a landing URL.
type UTM struct {
	Source   string `gorm:"column:utm_source;index" json:"utm_source,omitempty"`
	Medium   string `gorm:"column:utm_medium" json:"utm_medium,omitempty"`
	Campaign string `gorm:"column:utm_campaign" json:"utm_campaign,omitempty"`
	Term     string `gorm:"column:utm_term" json:"utm_term,omitempty"`
	Content  string `gorm:"column:utm_content" json:"utm_content,omitempty"`
}

// ClickIDs holds the ad-network click identifiers.
type ClickIDs struct {
	Gclid   string `gorm:"column:gclid" json:"gclid,omitempty"`
	Fbclid  string `gorm:"column:fbclid" json:"fbclid,omitempty"`
	Ttclid  string `gorm:"column:ttclid" json:"ttclid,omitempty"`
	LiFatID string `gorm:"column:li_fat_id" json:"li_fat_id,omitempty"`
}

// Event is append-only. Nothing updates an event after insert apart from
// the merge re-point and anonymization scrub done by the store.
type Event struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	CustomerID *uint         `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	TenantID   *uint         `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	SessionID  string        `gorm:"column:session_id;index" json:"session_id,omitempty"`
	VisitorID  string        `gorm:"column:visitor_id" json:"visitor_id,omitempty"`
	Type       EventType     `gorm:"column:event_type;index;not null" json:"event_type"`
	Category   EventCategory `gorm:"column:event_category" json:"event_category"`

	PageURL   string `gorm:"column:page_url" json:"page_url,omitempty"`
	PageTitle string `gorm:"column:page_title" json:"page_title,omitempty"`
	Referrer  string `gorm:"column:referrer" json:"referrer,omitempty"`

	UTM      `gorm:"embedded"`
	ClickIDs `gorm:"embedded"`

	DeviceType  string `gorm:"column:device_type" json:"device_type,omitempty"`
	Browser     string `gorm:"column:browser" json:"browser,omitempty"`
	OS          string `gorm:"column:os" json:"os,omitempty"`
	IPAddress   string `gorm:"column:ip_address" json:"-"`
	CountryCode string `gorm:"column:country_code" json:"country_code,omitempty"`
	City        string `gorm:"column:city" json:"city,omitempty"`

	IsConverted     bool    `gorm:"column:is_converted;default:false;index" json:"is_converted"`
	ConversionValue float64 `gorm:"column:conversion_value;type:numeric;default:0" json:"conversion_value"`
	Currency        string  `gorm:"column:currency;size:3" json:"currency,omitempty"`
	ProductCategory string  `gorm:"column:product_category" json:"product_category,omitempty"`

	Order   OrderRef                         `gorm:"embedded" json:"order"`
	Payload datatypes.JSONType[EventPayload] `gorm:"column:payload" json:"payload"`

	OccurredAt time.Time `gorm:"column:occurred_at;index;not null" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}
