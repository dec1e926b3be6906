package entity

import (
	"time"
)

type EventType string

const (
	EventPageView  EventType = "pageview"
	EventAddToCart EventType = "add_to_cart"
	EventPurchase  EventType = "purchase"
)

// ValidEventTypes is a set of valid event types
var ValidEventTypes = map[EventType]bool{
	EventPageView:  true,
	EventAddToCart: true,
	EventPurchase:  true,
}

// AttributionType tells how an event's source was decided.
type AttributionType string

const (
	AttributionUTM             AttributionType = "utm"
	AttributionReferrer        AttributionType = "inferred_referrer"
	AttributionUserAgent       AttributionType = "inferred_user_agent"
	AttributionClientReported  AttributionType = "client_reported"
	AttributionDirectConfirmed AttributionType = "direct_confirmed"
	AttributionDirect          AttributionType = "direct"
	AttributionUnknown         AttributionType = "unknown"
)

// Well known traffic sources.
const (
	SourceInstagram = "instagram"
	SourceFacebook  = "facebook"
	SourceTikTok    = "tiktok"
	SourceSnapchat  = "snapchat"
	SourceGoogle    = "google"
	SourceBing      = "bing"
	SourceReferral  = "referral"
	SourceEmail     = "email"
	SourceDirect    = "direct"
	SourceUnknown   = "unknown"
)

// SourceRecord is the attributed source of an event or session.
type SourceRecord struct {
	Source string          `db:"source" json:"source"`
	Type   AttributionType `db:"attribution_type" json:"attribution_type"`
}

// IsUnknown reports whether no usable source is recorded.
func (s SourceRecord) IsUnknown() bool {
	return s.Source == "" || s.Source == SourceUnknown
}

// EventProduct is a product referenced by an add_to_cart or purchase event.
type EventProduct struct {
	SKU      string `json:"sku,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
}

// EventDetail is the structured payload of an event.
type EventDetail struct {
	OrderId  string         `json:"order_id,omitempty"`
	Total    string         `json:"total,omitempty"`
	Products []EventProduct `json:"products,omitempty"`
}

// ProductNames returns the non-empty product names of the payload.
func (d EventDetail) ProductNames() []string {
	names := make([]string, 0, len(d.Products))
	for _, p := range d.Products {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// UTM holds campaign parameters captured on the landing URL.
type UTM struct {
	Source   string `db:"utm_source" json:"source"`
	Medium   string `db:"utm_medium" json:"medium"`
	Campaign string `db:"utm_campaign" json:"campaign"`
	Term     string `db:"utm_term" json:"term"`
	Content  string `db:"utm_content" json:"content"`
}

// ClientInfo is what the browser reported about itself.
type ClientInfo struct {
	UserAgent        string `json:"user_agent"`
	Language         string `json:"language,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	Platform         string `json:"platform,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
	DeviceMemory     string `json:"device_memory,omitempty"`
}

// CustomerInfo is the identity snapshot attached to an event, if any.
type CustomerInfo struct {
	CustomerId string `db:"customer_id" json:"id"`
	Email      string `db:"email" json:"email"`
	Mobile     string `db:"mobile" json:"mobile"`
	Name       string `db:"customer_name" json:"name"`
}

// VisitorEventInsert is an event as written by the tracker.
type VisitorEventInsert struct {
	VisitorId string      `db:"visitor_id"`
	SessionId string      `db:"session_id"`
	EventType EventType   `db:"event_type"`
	Detail    EventDetail `db:"-"`
	UTM
	Referrer     string     `db:"referrer"`
	PageURL      string     `db:"page_url"`
	ClientSource string     `db:"client_source"`
	IP           string     `db:"ip"`
	ClientInfo   ClientInfo `db:"-"`
	CustomerInfo
	SourceRecord
	Campaign  string    `db:"campaign"`
	CreatedAt time.Time `db:"created_at"`
}

// VisitorEvent is a stored event. Ids grow monotonically and drive the
// incremental identity sync.
type VisitorEvent struct {
	Id int64 `db:"id"`
	VisitorEventInsert
}
