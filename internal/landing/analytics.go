package landing

import (
	"io"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tabular"
)

var (
	colPagePath    = []string{"Page path and screen class", "Page path", "pagePath", "Landing page"}
	colActiveUsers = []string{"Active users", "activeUsers", "Users"}
	colAddToCarts  = []string{"Add to carts", "addToCarts"}
	colKeyEvents   = []string{"Key events", "keyEvents", "Conversions"}
)

// DefaultAnalyticsHeaderRow is where the analytics export puts its header,
// below the report description lines.
const DefaultAnalyticsHeaderRow = 10

// ParseAnalytics reads the analytics page export. The key-events column is
// required as a check that the right report was uploaded.
func ParseAnalytics(r io.Reader, headerRow int) ([]entity.PageMetric, error) {
	if headerRow <= 0 {
		headerRow = DefaultAnalyticsHeaderRow
	}
	t, err := tabular.Read("analytics", r, headerRow)
	if err != nil {
		return nil, err
	}
	if err := t.Require(colPagePath, colActiveUsers, colKeyEvents); err != nil {
		return nil, err
	}

	out := make([]entity.PageMetric, 0, len(t.Rows))
	for _, row := range t.Rows {
		path := t.Get(row, colPagePath...)
		if path == "" {
			continue
		}
		out = append(out, entity.PageMetric{
			PagePath:    path,
			ActiveUsers: int64(tabular.Int(t.Get(row, colActiveUsers...))),
			AddToCarts:  int64(tabular.Int(t.Get(row, colAddToCarts...))),
		})
	}
	return out, nil
}

// TotalActiveUsers sums active users over every page row.
func TotalActiveUsers(metrics []entity.PageMetric) int64 {
	var n int64
	for _, m := range metrics {
		n += m.ActiveUsers
	}
	return n
}
