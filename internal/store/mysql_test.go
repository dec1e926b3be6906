package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
)

// newTestDB connects to the database named by MYSQL_TEST_DSN and empties
// every table. Tests are skipped when it is not set.
func newTestDB(t *testing.T) *MYSQLStore {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set - skipping MySQL integration test")
	}
	db, err := New(context.Background(), Config{
		DSN:         dsn,
		Automigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	_, err = db.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0")
	require.NoError(t, err)
	for _, table := range []string{
		"customer_event", "customer_contribution", "customer_visitor", "customer", "sync_status",
		"visitor_event", "order_line",
		"canonical_variation", "canonical_product", "catalog_product", "product_package", "sku_mapping",
	} {
		_, err = db.db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	_, err = db.db.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	require.NoError(t, err)

	return db
}

func TestIsErrorRepeat(t *testing.T) {
	ms := &MYSQLStore{}
	assert.True(t, ms.IsErrorRepeat(fmt.Errorf("commit: %w", &mysql.MySQLError{Number: 1213})))
	assert.True(t, ms.IsErrorRepeat(&mysql.MySQLError{Number: 1205}))
	assert.False(t, ms.IsErrorRepeat(&mysql.MySQLError{Number: 1062}))
	assert.False(t, ms.IsErrorRepeat(fmt.Errorf("plain")))
	assert.True(t, ms.IsErrUniqueViolation(&mysql.MySQLError{Number: 1062}))
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

func TestTxNested(t *testing.T) {
	ms := &MYSQLStore{txDB: nopTx{}}
	require.True(t, ms.InTx())
	called := false
	err := ms.Tx(context.Background(), func(_ context.Context, rep dependency.Repository) error {
		called = true
		assert.Same(t, ms, rep)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, (&MYSQLStore{}).InTx())
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunks([]int{1, 2}, 2))
}
