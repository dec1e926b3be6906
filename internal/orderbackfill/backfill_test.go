package orderbackfill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store/memory"
)

func newServer(t *testing.T, retries *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/orders":
			page := r.URL.Query().Get("page")
			assert.Equal(t, "2024-03-01", r.URL.Query().Get("date_from"))
			switch page {
			case "1":
				fmt.Fprint(w, `{"orders":[{"id":1001},{"id":"1002"},{"id":1003}],"pagination":{"page":1,"total_pages":2}}`)
			case "2":
				fmt.Fprint(w, `{"orders":[{"id":1004}],"pagination":{"page":2,"total_pages":2}}`)
			default:
				t.Errorf("unexpected page %s", page)
			}
		case r.URL.Path == "/orders/1003":
			http.Error(w, "gone", http.StatusNotFound)
		case r.URL.Path == "/orders/1004" && retries.Add(1) == 1:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		case strings.HasPrefix(r.URL.Path, "/orders/"):
			id := strings.TrimPrefix(r.URL.Path, "/orders/")
			fmt.Fprintf(w, `{"order":{"id":%s,"created_at":"2024-03-05 12:00:00","order_status":{"name":"completed"},
				"source":"website","payment":{"method":{"name":"Tabby"}},"customer":{"name":"Sara","note":""},
				"order_total":"250.00","products":[
					{"sku":"V1","name":"Memory Pillow","quantity":2,"net_price":"100","price":"115"},
					{"sku":"FEE","name":"payment fee","quantity":1,"net_price":20,"price":20}]}}`, id)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRun(t *testing.T) {
	var retries atomic.Int32
	srv := newServer(t, &retries)
	defer srv.Close()

	st := memory.New()
	b := New(Config{
		BaseURL:     srv.URL,
		Token:       "secret",
		DetailBatch: 2,
		BatchSleep:  time.Second,
		PageSleep:   5 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
	}, st.Orders())
	var slept []time.Duration
	b.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	res, err := b.Run(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, &Result{Pages: 2, Orders: 3, Lines: 6, Failed: 1}, res)

	// page 1: one batch sleep between its two detail batches, then the page sleep;
	// page 2: one retry backoff for the throttled detail.
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, time.Millisecond}, slept)

	lines, err := st.Orders().GetOrderLines(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, lines, 6)
	assert.Equal(t, "1001", lines[0].OrderId)
	assert.Equal(t, 1, lines[0].LineNo)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Tabby", lines[0].PaymentMethod)
	assert.Equal(t, "250", lines[0].Total.String())
	assert.Equal(t, "payment fee", lines[1].ProductName)
}

func TestRunListFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := New(Config{BaseURL: srv.URL}, memory.New().Orders())
	b.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := b.Run(context.Background(), time.Time{}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFlexId(t *testing.T) {
	var d detailResponse
	require.NoError(t, json.Unmarshal([]byte(`{"order":{"id":42}}`), &d))
	assert.Equal(t, flexId("42"), d.Order.Id)
	require.NoError(t, json.Unmarshal([]byte(`{"order":{"id":"A-7"}}`), &d))
	assert.Equal(t, flexId("A-7"), d.Order.Id)
}

func TestParseCreated(t *testing.T) {
	assert.Equal(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), parseCreated("2024-03-05 12:00:00"))
	assert.True(t, parseCreated("yesterday").IsZero())
}
