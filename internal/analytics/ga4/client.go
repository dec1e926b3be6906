package ga4

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// Config holds GA4 client configuration.
type Config struct {
	PropertyID      string `mapstructure:"property_id"`
	CredentialsJSON string `mapstructure:"credentials_json"` // path to service account JSON file, or raw JSON (for env vars)
	Enabled         bool   `mapstructure:"enabled"`
}

// Client wraps the GA4 Data API client.
type Client struct {
	service    *analyticsdata.Service
	propertyID string
	enabled    bool
}

// NewClient creates a new GA4 client.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		slog.Default().InfoContext(ctx, "GA4 analytics disabled")
		return &Client{enabled: false}, nil
	}

	if cfg.PropertyID == "" {
		return nil, fmt.Errorf("ga4 property_id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		jsonBytes := []byte(cfg.CredentialsJSON)
		if len(jsonBytes) > 0 && jsonBytes[0] == '{' {
			opts = append(opts, option.WithCredentialsJSON(jsonBytes))
		} else {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsJSON))
		}
	}

	return newClient(ctx, cfg.PropertyID, opts...)
}

func newClient(ctx context.Context, propertyID string, opts ...option.ClientOption) (*Client, error) {
	service, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GA4 service: %w", err)
	}

	slog.Default().InfoContext(ctx, "GA4 analytics client initialized",
		slog.String("property_id", propertyID))

	return &Client{
		service:    service,
		propertyID: propertyID,
		enabled:    true,
	}, nil
}

// Enabled reports whether the client talks to GA4.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

func dateRange(startDate, endDate time.Time) []*analyticsdata.DateRange {
	return []*analyticsdata.DateRange{
		{
			StartDate: startDate.Format("2006-01-02"),
			EndDate:   endDate.Format("2006-01-02"),
		},
	}
}

func (c *Client) run(ctx context.Context, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	resp, err := c.service.Properties.RunReport(fmt.Sprintf("properties/%s", c.propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to run GA4 report: %w", err)
	}
	return resp, nil
}

// GetActiveUsers fetches the de-duplicated active user count of the period.
func (c *Client) GetActiveUsers(ctx context.Context, startDate, endDate time.Time) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}

	resp, err := c.run(ctx, &analyticsdata.RunReportRequest{
		DateRanges: dateRange(startDate, endDate),
		Metrics: []*analyticsdata.Metric{
			{Name: "activeUsers"},
		},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].MetricValues) == 0 {
		return 0, nil
	}
	return parseInt(resp.Rows[0].MetricValues[0].Value), nil
}

// GetLandingPageMetrics fetches active users and add-to-carts per product page.
func (c *Client) GetLandingPageMetrics(ctx context.Context, startDate, endDate time.Time, pathMarker string) ([]entity.PageMetric, error) {
	if !c.Enabled() {
		return nil, nil
	}

	resp, err := c.run(ctx, &analyticsdata.RunReportRequest{
		DateRanges: dateRange(startDate, endDate),
		Dimensions: []*analyticsdata.Dimension{
			{Name: "pagePath"},
		},
		Metrics: []*analyticsdata.Metric{
			{Name: "activeUsers"},
			{Name: "addToCarts"},
			{Name: "keyEvents"},
		},
		DimensionFilter: &analyticsdata.FilterExpression{
			Filter: &analyticsdata.Filter{
				FieldName: "pagePath",
				StringFilter: &analyticsdata.StringFilter{
					MatchType: "CONTAINS",
					Value:     pathMarker,
				},
			},
		},
		Limit: 10000,
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.PageMetric, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) < 2 {
			continue
		}
		out = append(out, entity.PageMetric{
			PagePath:    row.DimensionValues[0].Value,
			ActiveUsers: parseInt(row.MetricValues[0].Value),
			AddToCarts:  parseInt(row.MetricValues[1].Value),
		})
	}
	return out, nil
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
