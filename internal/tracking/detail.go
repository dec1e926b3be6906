package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type rawProduct struct {
	SKU         flexString `json:"sku"`
	Name        string     `json:"name"`
	ProductName string     `json:"product_name"`
	Quantity    flexString `json:"quantity"`
}

// ErrMalformedDetail wraps the fields of an event detail that could not be
// decoded.
var ErrMalformedDetail = errors.New("malformed event detail")

// ParseDetail decodes an event detail payload. Order ids may be sent as
// numbers or strings, and products as a list or a single product_name.
//
// The payload is free-form. Fields of an unexpected shape are dropped and
// reported in the returned error; the detail built from the remaining
// fields is returned either way.
func ParseDetail(raw json.RawMessage) (entity.EventDetail, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return entity.EventDetail{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return entity.EventDetail{}, fmt.Errorf("%w: %v", ErrMalformedDetail, err)
	}

	var errs []error
	field := func(name string, dst any) {
		v, ok := fields[name]
		if !ok {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	var (
		orderId, total flexString
		productName    string
		productNames   []string
		products       []json.RawMessage
	)
	field("order_id", &orderId)
	field("total", &total)
	field("product_name", &productName)
	field("product_names", &productNames)
	field("products", &products)

	d := entity.EventDetail{
		OrderId: string(orderId),
		Total:   string(total),
	}
	for i, raw := range products {
		var p rawProduct
		if err := json.Unmarshal(raw, &p); err != nil {
			errs = append(errs, fmt.Errorf("products[%d]: %w", i, err))
			continue
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = strings.TrimSpace(p.ProductName)
		}
		q, _ := strconv.Atoi(string(p.Quantity))
		if name == "" && p.SKU == "" {
			continue
		}
		d.Products = append(d.Products, entity.EventProduct{SKU: string(p.SKU), Name: name, Quantity: q})
	}
	names := productNames
	if productName != "" {
		names = append(names, productName)
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			d.Products = append(d.Products, entity.EventProduct{Name: n})
		}
	}

	if len(errs) > 0 {
		return d, fmt.Errorf("%w: %w", ErrMalformedDetail, errors.Join(errs...))
	}
	return d, nil
}
