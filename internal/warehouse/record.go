package warehouse

import (
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// productRecord is the BigQuery row of a product performance export.
type productRecord struct {
	RunId              string    `bigquery:"run_id"`
	PeriodFrom         time.Time `bigquery:"period_from"`
	PeriodTo           time.Time `bigquery:"period_to"`
	ExportedAt         time.Time `bigquery:"exported_at"`
	ProductKey         string    `bigquery:"product_key"`
	SKUs               string    `bigquery:"skus"`
	Ads                int       `bigquery:"ads"`
	Spend              float64   `bigquery:"spend"`
	PlatformOrders     int       `bigquery:"platform_orders"`
	Sales              float64   `bigquery:"sales"`
	ROAS               float64   `bigquery:"roas"`
	CPA                float64   `bigquery:"cpa"`
	CartAverage        float64   `bigquery:"cart_average"`
	Quantity           int       `bigquery:"quantity"`
	Orders             int       `bigquery:"orders"`
	WebsiteOrders      int       `bigquery:"website_orders"`
	QuantityPercentage float64   `bigquery:"quantity_percentage"`
	OrdersPercentage   float64   `bigquery:"orders_percentage"`
	BudgetShare        float64   `bigquery:"budget_share"`
}

// Save implements bigquery.ValueSaver. The insert id makes retried inserts
// of the same run idempotent.
func (r *productRecord) Save() (map[string]bigquery.Value, string, error) {
	row, _, err := (&bigquery.StructSaver{Struct: r}).Save()
	if err != nil {
		return nil, "", err
	}
	return row, r.RunId + ":" + r.ProductKey, nil
}

func toRecords(runId string, period entity.TimeRange, at time.Time, rows []entity.ProductPerformanceRow) []*productRecord {
	out := make([]*productRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &productRecord{
			RunId:              runId,
			PeriodFrom:         period.From.UTC(),
			PeriodTo:           period.To.UTC(),
			ExportedAt:         at,
			ProductKey:         r.ProductKey,
			SKUs:               strings.Join(r.SKUs, ","),
			Ads:                r.Ads,
			Spend:              r.Spend.InexactFloat64(),
			PlatformOrders:     r.PlatformOrders,
			Sales:              r.Sales.InexactFloat64(),
			ROAS:               r.ROAS.InexactFloat64(),
			CPA:                r.CPA.InexactFloat64(),
			CartAverage:        r.CartAverage.InexactFloat64(),
			Quantity:           r.Stats.Quantity,
			Orders:             r.Stats.Orders,
			WebsiteOrders:      r.Stats.WebsiteOrders,
			QuantityPercentage: r.Stats.QuantityPercentage.InexactFloat64(),
			OrdersPercentage:   r.Stats.OrdersPercentage.InexactFloat64(),
			BudgetShare:        r.BudgetShare.InexactFloat64(),
		})
	}
	return out
}
