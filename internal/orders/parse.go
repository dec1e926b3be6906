package orders

import (
	"io"
	"time"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tabular"
)

var (
	colOrderId       = []string{"order_id", "رقم الطلب", "Order ID", "Order Number"}
	colSKU           = []string{"sku", "SKU", "رمز المنتج"}
	colProductName   = []string{"product_name", "اسم المنتج", "Product Name"}
	colQuantity      = []string{"quantity", "الكمية", "Quantity"}
	colNetPrice      = []string{"net_price", "السعر", "Price"}
	colGrossPrice    = []string{"gross_price", "السعر شامل الضريبة", "Price Incl. Tax"}
	colStatus        = []string{"status", "حالة الطلب", "Order Status"}
	colSource        = []string{"source", "مصدر الطلب", "Order Source"}
	colPaymentMethod = []string{"payment_method", "طريقة الدفع", "Payment Method"}
	colCustomerName  = []string{"customer_name", "اسم العميل", "Customer Name"}
	colCustomerNote  = []string{"customer_note", "ملاحظات", "Notes"}
	colTotal         = []string{"total", "إجمالي الطلب", "Order Total"}
	colCreatedAt     = []string{"created_at", "تاريخ الطلب", "Order Date"}
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// Parse reads the store's order export.
func Parse(r io.Reader) ([]entity.OrderLine, error) {
	t, err := tabular.Read("orders", r, 1)
	if err != nil {
		return nil, err
	}
	if err := t.Require(colOrderId, colSKU, colProductName, colStatus, colSource, colPaymentMethod); err != nil {
		return nil, err
	}

	lines := make([]entity.OrderLine, 0, len(t.Rows))
	lineNo := map[string]int{}
	for _, row := range t.Rows {
		id := t.Get(row, colOrderId...)
		if id == "" {
			continue
		}
		lineNo[id]++
		qty := 1
		if t.Has(colQuantity...) {
			qty = tabular.Int(t.Get(row, colQuantity...))
		}
		lines = append(lines, entity.OrderLine{
			OrderId:       id,
			LineNo:        lineNo[id],
			SKU:           t.Get(row, colSKU...),
			ProductName:   t.Get(row, colProductName...),
			Quantity:      qty,
			NetPrice:      tabular.Decimal(t.Get(row, colNetPrice...)),
			GrossPrice:    tabular.Decimal(t.Get(row, colGrossPrice...)),
			Status:        t.Get(row, colStatus...),
			Source:        t.Get(row, colSource...),
			PaymentMethod: t.Get(row, colPaymentMethod...),
			CustomerName:  t.Get(row, colCustomerName...),
			CustomerNote:  t.Get(row, colCustomerNote...),
			Total:         tabular.Decimal(t.Get(row, colTotal...)),
			CreatedAt:     parseTime(t.Get(row, colCreatedAt...)),
		})
	}
	return lines, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, l := range dateLayouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
