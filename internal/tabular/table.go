// Package tabular reads the CSV exports uploaded for a reporting run.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// Table is a parsed export: a header row and the data rows below it.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Read parses r as CSV. headerRow is the 1-based row holding the column names;
// rows above it (report titles, date ranges) are discarded.
func Read(name string, r io.Reader, headerRow int) (*Table, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &Table{Name: name, index: map[string]int{}}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line++
		if line < headerRow {
			continue
		}
		if line == headerRow {
			t.setHeader(rec)
			continue
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if t.Header == nil {
		return nil, gerr.NewValidation(name, "header row %d not found", headerRow)
	}
	return t, nil
}

func (t *Table) setHeader(rec []string) {
	t.Header = make([]string, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header[i] = h
		key := strings.ToLower(h)
		if _, ok := t.index[key]; !ok {
			t.index[key] = i
		}
	}
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Col returns the index of the first of names present in the header.
func (t *Table) Col(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.index[strings.ToLower(strings.TrimSpace(n))]; ok {
			return i, true
		}
	}
	return -1, false
}

// Has reports whether any of names is a column.
func (t *Table) Has(names ...string) bool {
	_, ok := t.Col(names...)
	return ok
}

// Require fails with a ValidationError naming every column group that is
// absent. Each group is a list of accepted spellings of one column.
func (t *Table) Require(groups ...[]string) error {
	var missing []string
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		if !t.Has(g...) {
			missing = append(missing, g[0])
		}
	}
	if len(missing) > 0 {
		return gerr.MissingColumns(t.Name, missing)
	}
	return nil
}

// Get returns the trimmed cell of row under the first present column of names.
func (t *Table) Get(row []string, names ...string) string {
	i, ok := t.Col(names...)
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Decimal parses an exported number. Thousands separators, currency codes,
// percent signs and placeholder dashes are tolerated; unparsable cells are 0.
func Decimal(s string) decimal.Decimal {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int parses an exported count. Fractional values are truncated.
func Int(s string) int {
	s = cleanNumber(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" || s == "--" || strings.EqualFold(s, "n/a") {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		}
	}
	return b.String()
}
