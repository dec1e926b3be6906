package orderbackfill

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// flexId accepts ids encoded either as JSON strings or numbers.
type flexId string

func (f *flexId) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexId(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexId(b)
	return nil
}

type listResponse struct {
	Orders []struct {
		Id flexId `json:"id"`
	} `json:"orders"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type named struct {
	Name string `json:"name"`
}

type orderProduct struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	NetPrice decimal.Decimal `json:"net_price"`
	Price    decimal.Decimal `json:"price"`
}

type orderDetail struct {
	Id        flexId `json:"id"`
	CreatedAt string `json:"created_at"`
	Status    named  `json:"order_status"`
	Source    string `json:"source"`
	Payment   struct {
		Method named `json:"method"`
	} `json:"payment"`
	Customer struct {
		Name string `json:"name"`
		Note string `json:"note"`
	} `json:"customer"`
	Total    decimal.Decimal `json:"order_total"`
	Products []orderProduct  `json:"products"`
}

type detailResponse struct {
	Order orderDetail `json:"order"`
}

var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCreated(s string) time.Time {
	for _, l := range createdLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// lines flattens an order into export lines, one per product.
func (o orderDetail) lines() []entity.OrderLine {
	created := parseCreated(o.CreatedAt)
	out := make([]entity.OrderLine, 0, len(o.Products))
	for i, p := range o.Products {
		qty := p.Quantity
		if qty == 0 {
			qty = 1
		}
		out = append(out, entity.OrderLine{
			OrderId:       string(o.Id),
			LineNo:        i + 1,
			SKU:           p.SKU,
			ProductName:   p.Name,
			Quantity:      qty,
			NetPrice:      p.NetPrice,
			GrossPrice:    p.Price,
			Status:        o.Status.Name,
			Source:        o.Source,
			PaymentMethod: o.Payment.Method.Name,
			CustomerName:  o.Customer.Name,
			CustomerNote:  o.Customer.Note,
			Total:         o.Total,
			CreatedAt:     created,
		})
	}
	return out
}
