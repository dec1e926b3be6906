package dependency

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

//go:generate mockery --with-expecter --case underscore --all --output=./mocks
type (
	ContextStore interface {
		Tx(ctx context.Context, fn func(ctx context.Context, store Repository) error) error
	}

	Catalog interface {
		// LoadCatalog returns the full catalog with variation lists already decoded.
		LoadCatalog(ctx context.Context) (*entity.Catalog, error)
		// ReplaceCatalog swaps the stored catalog for c.
		ReplaceCatalog(ctx context.Context, c *entity.Catalog) error
	}

	Orders interface {
		// UpsertOrderLines stores order lines keyed by (order id, line number).
		UpsertOrderLines(ctx context.Context, lines []entity.OrderLine) error
		// GetOrderLines returns the lines of orders created in [from, to).
		GetOrderLines(ctx context.Context, from, to time.Time) ([]entity.OrderLine, error)
	}

	Events interface {
		// InsertEvent appends a visitor event and returns its sequence id.
		InsertEvent(ctx context.Context, ev *entity.VisitorEventInsert) (int64, error)
		// PurchaseExists reports whether a purchase with the given order id was already recorded.
		PurchaseExists(ctx context.Context, orderId string) (bool, error)
		// SessionSource returns the recorded source of a session, nil if none.
		SessionSource(ctx context.Context, sessionId string) (*entity.SourceRecord, error)
		// VisitorSources returns the distinct non-unknown sources recorded for a visitor.
		VisitorSources(ctx context.Context, visitorId string) ([]entity.SourceRecord, error)
		// MobileSources returns the distinct non-unknown sources recorded for a mobile number.
		MobileSources(ctx context.Context, mobile string) ([]entity.SourceRecord, error)
		// BackfillSessionSource rewrites the source of every stored row of a session.
		BackfillSessionSource(ctx context.Context, sessionId string, src entity.SourceRecord) error
		// ListEventsAfter pages events with id > afterId in id order.
		ListEventsAfter(ctx context.Context, afterId int64, types []entity.EventType, limit int) ([]entity.VisitorEvent, error)
	}

	Customers interface {
		GetCustomerByCustomerId(ctx context.Context, customerId string) (*entity.CustomerRecord, error)
		// GetCustomerByVisitorIds returns the first record sharing any visitor id.
		GetCustomerByVisitorIds(ctx context.Context, visitorIds []string) (*entity.CustomerRecord, error)
		GetCustomerByUnifiedKey(ctx context.Context, key string) (*entity.CustomerRecord, error)
		// UpsertCustomer updates a record by id, or inserts it when it has no
		// id yet. Inserting a unified key that is already taken fails with
		// gerr.ErrConflict.
		UpsertCustomer(ctx context.Context, rec *entity.CustomerRecord) error
		// FoldedEvents returns which of eventIds were already merged into a record.
		FoldedEvents(ctx context.Context, eventIds []int64) (map[int64]bool, error)
		// MarkFolded records that eventIds were merged into customer customerId.
		MarkFolded(ctx context.Context, customerId int64, eventIds []int64) error
	}

	SyncStatus interface {
		GetSyncStatus(ctx context.Context, syncType string) (*entity.SyncStatus, error)
		UpdateSyncStatus(ctx context.Context, st *entity.SyncStatus) error
	}

	Repository interface {
		Catalog() Catalog
		Orders() Orders
		Events() Events
		Customers() Customers
		Sync() SyncStatus
		Tx(ctx context.Context, f func(context.Context, Repository) error) error
		Now() time.Time
		Close()
	}

	// DB represents database interface.
	DB interface {
		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

		// sqlx methods
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
		NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
		PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
		PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	FileStore interface {
		// Archive uploads a raw report input under the run's folder and returns its object key.
		Archive(ctx context.Context, runId, name string, r io.Reader, size int64) (string, error)
	}

	ReportExporter interface {
		// ExportProducts writes the product performance rows of a report run.
		ExportProducts(ctx context.Context, runId string, period entity.TimeRange, rows []entity.ProductPerformanceRow) error
	}
)
