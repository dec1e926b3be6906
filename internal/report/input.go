package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// DateLayout is the layout of period bounds given by operators.
const DateLayout = "2006-01-02"

// ParsePeriod turns inclusive calendar dates into a half-open range. Empty
// bounds stay zero.
func ParsePeriod(from, to string) (entity.TimeRange, error) {
	var tr entity.TimeRange
	if from = strings.TrimSpace(from); from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return tr, gerr.NewValidation("from", "expected YYYY-MM-DD, got %q", from)
		}
		tr.From = t
	}
	if to = strings.TrimSpace(to); to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return tr, gerr.NewValidation("to", "expected YYYY-MM-DD, got %q", to)
		}
		tr.To = t.AddDate(0, 0, 1)
	}
	return tr, nil
}

// ParseAmount parses an optional money amount; empty means zero.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, gerr.NewValidation(field, "expected a non-negative amount, got %q", s)
	}
	return d, nil
}

// ReadFile loads an upload from r.
func ReadFile(name string, r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", name, err)
	}
	return &File{Name: name, Data: b}, nil
}

// OpenFile loads an upload from disk. An empty path yields nil.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open %s: %w", path, err)
	}
	defer f.Close()
	return ReadFile(filepath.Base(path), f)
}
