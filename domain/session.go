package domain

import "time"

// SessionIdleTimeout is how long a session stays active without activity.
const SessionIdleTimeout = 30 * time.Minute

type Session struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SessionID  string `gorm:"column:session_id;uniqueIndex;not null" json:"session_id"`
	CustomerID *uint  `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	TenantID   *uint  `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	VisitorID  string `gorm:"column:visitor_id;index" json:"visitor_id,omitempty"`

	StartedAt       time.Time  `gorm:"column:started_at;index;not null" json:"started_at"`
	LastActivityAt  time.Time  `gorm:"column:last_activity_at;index" json:"last_activity_at"`
	EndedAt         *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	DurationSeconds int        `gorm:"column:duration_seconds;default:0" json:"duration_seconds"`
	Pageviews       int        `gorm:"column:pageviews;default:0" json:"pageviews"`
	Events          int        `gorm:"column:events;default:0" json:"events"`
	IsBounce        bool       `gorm:"column:is_bounce;default:false" json:"is_bounce"`
	IsEngaged       bool       `gorm:"column:is_engaged;default:false" json:"is_engaged"`

	LandingPage string `gorm:"column:landing_page" json:"landing_page,omitempty"`
	ExitPage    string `gorm:"column:exit_page" json:"exit_page,omitempty"`
	Referrer    string `gorm:"column:referrer" json:"referrer,omitempty"`

	UTM      `gorm:"embedded"`
	ClickIDs `gorm:"embedded"`

	DeviceType  string `gorm:"column:device_type" json:"device_type,omitempty"`
	Browser     string `gorm:"column:browser" json:"browser,omitempty"`
	OS          string `gorm:"column:os" json:"os,omitempty"`
	CountryCode string `gorm:"column:country_code" json:"country_code,omitempty"`
	City        string `gorm:"column:city" json:"city,omitempty"`

	Converted       bool    `gorm:"column:converted;default:false" json:"converted"`
	ConversionValue float64 `gorm:"column:conversion_value;type:numeric;default:0" json:"conversion_value"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// Active reports whether the session can still absorb activity at now.
func (s Session) Active(now time.Time) bool {
	return s.EndedAt == nil && now.Sub(s.LastActivityAt) <= SessionIdleTimeout
}

// RecordActivity extends the session and refreshes its running duration.
func (s *Session) RecordActivity(now time.Time) {
	s.Events++
	s.LastActivityAt = now
	s.DurationSeconds = int(now.Sub(s.StartedAt).Seconds())
}

// RecordPageView counts a page view and moves the exit page.
func (s *Session) RecordPageView(pageURL string, now time.Time) {
	s.Pageviews++
	if pageURL != "" {
		s.ExitPage = pageURL
	}
	s.RecordActivity(now)
}

// End closes the session and finalizes the bounce and engaged flags.
func (s *Session) End(now time.Time) {
	if s.EndedAt != nil {
		return
	}
	end := s.LastActivityAt
	if end.IsZero() || end.After(now) {
		end = now
	}
	s.EndedAt = &end
	s.DurationSeconds = int(end.Sub(s.StartedAt).Seconds())
	s.IsBounce = s.Pageviews <= 1
	s.IsEngaged = s.DurationSeconds >= 10 || s.Pageviews >= 2 || s.Converted
}

func (s *Session) MarkConverted(value float64) {
	s.Converted = true
	s.ConversionValue += value
}
