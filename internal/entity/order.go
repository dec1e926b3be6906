package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is one line of the store's order export. An order with several
// products appears as several lines sharing the same OrderId.
type OrderLine struct {
	OrderId       string          `db:"order_id"`
	LineNo        int             `db:"line_no"`
	SKU           string          `db:"sku"`
	ProductName   string          `db:"product_name"`
	Quantity      int             `db:"quantity"`
	NetPrice      decimal.Decimal `db:"net_price"`
	GrossPrice    decimal.Decimal `db:"gross_price"`
	Status        string          `db:"status"`
	Source        string          `db:"source"`
	PaymentMethod string          `db:"payment_method"`
	CustomerName  string          `db:"customer_name"`
	CustomerNote  string          `db:"customer_note"`
	Total         decimal.Decimal `db:"total"`
	CreatedAt     time.Time       `db:"created_at"`
}

// OrderChannel is where an order was placed.
type OrderChannel string

const (
	ChannelWebsite         OrderChannel = "website"
	ChannelCustomerService OrderChannel = "customer_service"
)

// Payment buckets used by the order-source breakdown.
const (
	PaymentTap     = "Tap"
	PaymentTabby   = "Tabby"
	PaymentUnknown = "Unknown"
)

// Order is a deduplicated order header.
type Order struct {
	OrderId       string
	Channel       OrderChannel
	PaymentMethod string
	PaymentBucket string
	Status        string
	Total         decimal.Decimal
	CreatedAt     time.Time
}
