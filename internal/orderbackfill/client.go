package orderbackfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// statusError is a non-2xx upstream response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("non-2xx: %d body=%s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	return se.code == http.StatusTooManyRequests || se.code >= 500
}

func (b *Backfiller) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := b.c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var err error
	for i := 0; i <= b.c.MaxRetries; i++ {
		err = b.do(ctx, u, v)
		if err == nil || !retryable(err) {
			return err
		}
		if i == b.c.MaxRetries {
			break
		}
		if serr := b.sleep(ctx, time.Duration(1<<i)*b.c.RetryDelay); serr != nil {
			return serr
		}
	}
	return err
}

func (b *Backfiller) do(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if b.c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.c.Token)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func listQuery(page, perPage int, from, to time.Time) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if !from.IsZero() {
		q.Set("date_from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		q.Set("date_to", to.Format("2006-01-02"))
	}
	return q
}
