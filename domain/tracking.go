package domain

// TrackPayload is the flat ingestion payload accepted for every tracked action.
type TrackPayload struct {
	Email        string `json:"email" validate:"omitempty,email,max=254"`
	Phone        string `json:"phone" validate:"omitempty,max=32"`
	FirstName    string `json:"first_name" validate:"omitempty,max=100"`
	LastName     string `json:"last_name" validate:"omitempty,max=100"`
	VisitorID    string `json:"visitor_id" validate:"omitempty,max=64"`
	SessionToken string `json:"session_token" validate:"omitempty,max=64"`
	DeviceID     string `json:"device_id" validate:"omitempty,max=128"`
	TenantID     *uint  `json:"tenant_id"`

	UTM
	ClickIDs

	Referrer  string `json:"referrer" validate:"omitempty,max=2048"`
	PageURL   string `json:"page_url" validate:"omitempty,max=2048"`
	PageTitle string `json:"page_title" validate:"omitempty,max=512"`

	DeviceType  string `json:"device_type" validate:"omitempty,max=32"`
	Browser     string `json:"browser" validate:"omitempty,max=64"`
	OS          string `json:"os" validate:"omitempty,max=64"`
	IPAddress   string `json:"ip_address" validate:"omitempty,ip"`
	UserAgent   string `json:"user_agent" validate:"omitempty,max=512"`
	CountryCode string `json:"country_code" validate:"omitempty,len=2"`
	Region      string `json:"region" validate:"omitempty,max=100"`
	City        string `json:"city" validate:"omitempty,max=100"`
	PostalCode  string `json:"postal_code" validate:"omitempty,max=20"`

	Value           float64     `json:"value" validate:"gte=0"`
	Currency        string      `json:"currency" validate:"omitempty,len=3"`
	OrderID         *uint       `json:"order_id"`
	OrderSource     OrderSource `json:"order_source" validate:"omitempty,oneof=tenant marketplace"`
	TicketCount     int         `json:"ticket_count" validate:"gte=0"`
	ProductCategory string      `json:"product_category" validate:"omitempty,max=100"`

	Items       []LineItem        `json:"items" validate:"omitempty,dive"`
	ItemID      string            `json:"item_id" validate:"omitempty,max=128"`
	SearchQuery string            `json:"search_query" validate:"omitempty,max=256"`
	Method      string            `json:"method" validate:"omitempty,max=64"`
	Label       string            `json:"label" validate:"omitempty,max=128"`
	Properties  map[string]string `json:"properties" validate:"omitempty,max=50"`
}

// Order resolves the payload's order fields into the normalized reference.
func (p TrackPayload) Order() OrderRef {
	if p.OrderID == nil {
		return OrderRef{}
	}
	source := p.OrderSource
	if source == "" {
		source = OrderSourceTenant
	}
	return OrderRef{Source: source, OrderID: p.OrderID, TicketCount: p.TicketCount}
}

func (p TrackPayload) EventPayload() EventPayload {
	return EventPayload{
		Items:       p.Items,
		ItemID:      p.ItemID,
		SearchQuery: p.SearchQuery,
		Method:      p.Method,
		UserAgent:   p.UserAgent,
		Label:       p.Label,
		Properties:  p.Properties,
	}
}
