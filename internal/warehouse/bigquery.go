// Package warehouse exports report tables to BigQuery.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"google.golang.org/api/option"
)

// Config holds BigQuery export configuration.
type Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	Dataset         string `mapstructure:"dataset"`
	ProductsTable   string `mapstructure:"products_table"`
	CredentialsJSON string `mapstructure:"credentials_json"` // path to service account JSON file, or raw JSON
}

// Exporter appends product performance rows to a BigQuery table.
type Exporter struct {
	client *bigquery.Client
	c      *Config
	now    func() time.Time
}

var _ dependency.ReportExporter = (*Exporter)(nil)

// New creates an exporter. The products table is created on first use when
// it does not exist.
func New(ctx context.Context, c *Config) (*Exporter, error) {
	if c.ProjectID == "" || c.Dataset == "" {
		return nil, fmt.Errorf("bigquery project_id and dataset are required")
	}
	if c.ProductsTable == "" {
		c.ProductsTable = "product_performance"
	}

	var opts []option.ClientOption
	if c.CredentialsJSON != "" {
		if strings.HasPrefix(strings.TrimSpace(c.CredentialsJSON), "{") {
			opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
		} else {
			opts = append(opts, option.WithCredentialsFile(c.CredentialsJSON))
		}
	}
	client, err := bigquery.NewClient(ctx, c.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	slog.Default().InfoContext(ctx, "bigquery exporter initialized",
		slog.String("project_id", c.ProjectID),
		slog.String("dataset", c.Dataset),
	)
	return &Exporter{client: client, c: c, now: time.Now}, nil
}

// Close releases the client.
func (e *Exporter) Close() error {
	return e.client.Close()
}

func (e *Exporter) ensureTable(ctx context.Context, t *bigquery.Table) error {
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	schema, err := bigquery.InferSchema(productRecord{})
	if err != nil {
		return fmt.Errorf("can't infer schema: %w", err)
	}
	err = t.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "period_from",
		},
	})
	if err != nil && !strings.Contains(err.Error(), "Already Exists") {
		return fmt.Errorf("can't create table %s: %w", t.TableID, err)
	}
	return nil
}

// ExportProducts appends the product rows of a report run.
func (e *Exporter) ExportProducts(ctx context.Context, runId string, period entity.TimeRange, rows []entity.ProductPerformanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	t := e.client.Dataset(e.c.Dataset).Table(e.c.ProductsTable)
	if err := e.ensureTable(ctx, t); err != nil {
		return err
	}

	records := toRecords(runId, period, e.now().UTC(), rows)
	if err := t.Inserter().Put(ctx, records); err != nil {
		return fmt.Errorf("can't insert product rows: %w", err)
	}
	slog.Default().InfoContext(ctx, "exported product rows",
		slog.String("run_id", runId),
		slog.Int("rows", len(records)),
	)
	return nil
}
