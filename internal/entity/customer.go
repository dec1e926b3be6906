package entity

import (
	"time"
)

// Default contribution buckets for events without campaign or source.
const (
	DefaultCampaign = "Direct"
	DefaultSource   = SourceUnknown
)

// Contribution is the credit a campaign or source earned for a customer.
// Purchases is fractional because assisted add-to-carts earn half a purchase.
type Contribution struct {
	Purchases  float64 `json:"purchases"`
	AddToCarts int     `json:"add_to_carts"`
}

// Add returns the sum of two contributions.
func (c Contribution) Add(o Contribution) Contribution {
	return Contribution{
		Purchases:  c.Purchases + o.Purchases,
		AddToCarts: c.AddToCarts + o.AddToCarts,
	}
}

// CustomerRecord is the durable identity that anonymous visitors are merged
// into.
type CustomerRecord struct {
	Id             int64                   `db:"id"`
	UnifiedKey     string                  `db:"unified_key"`
	VisitorIds     []string                `db:"-"`
	Campaigns      map[string]Contribution `db:"-"`
	Sources        map[string]Contribution `db:"-"`
	PurchaseCount  int                     `db:"purchase_count"`
	AddToCartCount int                     `db:"add_to_cart_count"`
	LastVisit      time.Time               `db:"last_visit"`
	LastEventId    int64                   `db:"last_event_id"`
	CustomerInfo
	UpdatedAt time.Time `db:"updated_at"`
}

// SyncStatus is the bookkeeping row of an incremental sync.
type SyncStatus struct {
	SyncType      string    `db:"sync_type"`
	HighWaterMark int64     `db:"high_water_mark"`
	LastSyncAt    time.Time `db:"last_sync_at"`
	Status        string    `db:"status"`
	RecordsSynced int       `db:"records_synced"`
	ErrorMessage  string    `db:"error_message"`
}
