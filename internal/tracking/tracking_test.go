package tracking

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store/memory"
)

const storeURL = "https://shop.example.com/"

type countingMetrics struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *countingMetrics) ObserveTrack(_, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[outcome]++
}

func newTracker(t *testing.T) (*Tracker, *memory.Store, *countingMetrics) {
	t.Helper()
	st := memory.New()
	m := &countingMetrics{m: map[string]int{}}
	tr, err := New(Config{StoreURL: storeURL}, st.Events(), m)
	require.NoError(t, err)
	return tr, st, m
}

func TestWeight(t *testing.T) {
	assert.Equal(t, WeightSocial, Weight("Instagram"))
	assert.Equal(t, WeightSocial, Weight("fb"))
	assert.Equal(t, WeightGoogle, Weight("google"))
	assert.Equal(t, WeightBing, Weight("bing"))
	assert.Equal(t, WeightEmail, Weight("email"))
	assert.Equal(t, WeightDirect, Weight("direct"))
	assert.Equal(t, WeightUnknown, Weight(""))
	assert.Equal(t, WeightReferral, Weight("some-blog"))
	assert.Greater(t, Weight("google"), Weight("bing"))
	assert.Greater(t, Weight("referral"), Weight("email"))
}

func TestFromReferrer(t *testing.T) {
	tests := []struct {
		referrer string
		want     string
		ok       bool
	}{
		{"https://instagram.com/p/abc", entity.SourceInstagram, true},
		{"https://l.instagram.com/?u=x", entity.SourceInstagram, true},
		{"https://lm.facebook.com/l.php", entity.SourceFacebook, true},
		{"https://www.tiktok.com/@shop", entity.SourceTikTok, true},
		{"https://www.google.com.sa/", entity.SourceGoogle, true},
		{"https://mail.google.com/mail/u/0", entity.SourceEmail, true},
		{"https://outlook.live.com/", entity.SourceEmail, true},
		{"https://www.bing.com/search?q=x", entity.SourceBing, true},
		{"https://someblog.net/post", entity.SourceReferral, true},
		{"https://shop.example.com/cart", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.referrer, func(t *testing.T) {
			got, ok := FromReferrer(tt.referrer, "shop.example.com")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromClickIdsAndUserAgent(t *testing.T) {
	s, ok := FromClickIds("https://shop.example.com/products/x?fbclid=abc")
	assert.True(t, ok)
	assert.Equal(t, entity.SourceFacebook, s)

	s, ok = FromClickIds("https://shop.example.com/?gclid=1")
	assert.True(t, ok)
	assert.Equal(t, entity.SourceGoogle, s)

	_, ok = FromClickIds("https://shop.example.com/?q=1")
	assert.False(t, ok)

	s, ok = FromUserAgent("Mozilla/5.0 (iPhone) Instagram 300.0")
	assert.True(t, ok)
	assert.Equal(t, entity.SourceInstagram, s)

	s, ok = FromUserAgent("Mozilla/5.0 [FBAN/FBIOS;FBAV/400]")
	assert.True(t, ok)
	assert.Equal(t, entity.SourceFacebook, s)

	s, ok = FromUserAgent("Mozilla/5.0 musical_ly_2023")
	assert.True(t, ok)
	assert.Equal(t, entity.SourceTikTok, s)

	_, ok = FromUserAgent("Mozilla/5.0 Safari")
	assert.False(t, ok)
}

func TestIsStoreRoot(t *testing.T) {
	u, _ := url.Parse(storeURL)
	assert.True(t, isStoreRoot("https://shop.example.com/", u))
	assert.True(t, isStoreRoot("https://www.shop.example.com", u))
	assert.True(t, isStoreRoot("https://shop.example.com/?x=1", u))
	assert.False(t, isStoreRoot("https://shop.example.com/products/a", u))
	assert.False(t, isStoreRoot("https://other.com/", u))
	assert.False(t, isStoreRoot("", u))
	assert.False(t, isStoreRoot("https://shop.example.com/", nil))
}

func TestInfer(t *testing.T) {
	r, err := NewResolver(memory.New().Events(), storeURL)
	require.NoError(t, err)

	tests := []struct {
		name string
		ev   entity.VisitorEventInsert
		want entity.SourceRecord
	}{
		{
			name: "direct on root is confirmed",
			ev:   entity.VisitorEventInsert{PageURL: "https://shop.example.com/"},
			want: entity.SourceRecord{Source: entity.SourceDirect, Type: entity.AttributionDirectConfirmed},
		},
		{
			name: "no referrer off root is unknown",
			ev:   entity.VisitorEventInsert{PageURL: "https://shop.example.com/products/pillow"},
			want: entity.SourceRecord{Source: entity.SourceUnknown, Type: entity.AttributionUnknown},
		},
		{
			name: "instagram referrer",
			ev: entity.VisitorEventInsert{
				Referrer: "https://instagram.com/stories/x",
				PageURL:  "https://shop.example.com/products/pillow",
			},
			want: entity.SourceRecord{Source: entity.SourceInstagram, Type: entity.AttributionReferrer},
		},
		{
			name: "utm short-circuits",
			ev: entity.VisitorEventInsert{
				UTM:      entity.UTM{Source: "snapchat"},
				Referrer: "https://instagram.com/",
			},
			want: entity.SourceRecord{Source: entity.SourceSnapchat, Type: entity.AttributionUTM},
		},
		{
			name: "utm direct loses to social referrer",
			ev: entity.VisitorEventInsert{
				UTM:      entity.UTM{Source: "direct"},
				Referrer: "https://www.facebook.com/",
			},
			want: entity.SourceRecord{Source: entity.SourceFacebook, Type: entity.AttributionReferrer},
		},
		{
			name: "user agent beats plain referral",
			ev: entity.VisitorEventInsert{
				Referrer:   "https://someblog.net/",
				ClientInfo: entity.ClientInfo{UserAgent: "Mozilla/5.0 TikTok 30.1"},
			},
			want: entity.SourceRecord{Source: entity.SourceTikTok, Type: entity.AttributionUserAgent},
		},
		{
			name: "client reported when nothing else",
			ev: entity.VisitorEventInsert{
				Referrer:     "https://shop.example.com/cart",
				ClientSource: "Google",
			},
			want: entity.SourceRecord{Source: entity.SourceGoogle, Type: entity.AttributionClientReported},
		},
		{
			name: "own referrer without anything else",
			ev:   entity.VisitorEventInsert{Referrer: "https://shop.example.com/cart"},
			want: entity.SourceRecord{Source: entity.SourceUnknown, Type: entity.AttributionUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Infer(&tt.ev))
		})
	}
}

func TestTrackDirectConfirmed(t *testing.T) {
	tr, st, _ := newTracker(t)
	res, err := tr.Track(context.Background(), Request{
		VisitorId: "v1",
		SessionId: "s1",
		EventType: "pageview",
		PageURL:   "https://shop.example.com/",
	})
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.Equal(t, entity.SourceDirect, res.Source.Source)
	assert.Equal(t, entity.AttributionDirectConfirmed, res.Source.Type)
	require.Len(t, st.AllEvents(), 1)
}

func TestTrackSocialOverridesWeakerSession(t *testing.T) {
	tr, st, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "s1", EventType: "pageview", PageURL: storeURL})
	require.NoError(t, err)

	res, err := tr.Track(ctx, Request{
		VisitorId: "v1",
		SessionId: "s1",
		EventType: "pageview",
		Referrer:  "https://instagram.com/p/1",
		PageURL:   "https://shop.example.com/products/pillow",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SourceInstagram, res.Source.Source)
	assert.Equal(t, entity.AttributionReferrer, res.Source.Type)

	for _, ev := range st.AllEvents() {
		assert.Equal(t, entity.SourceInstagram, ev.SourceRecord.Source, "event %d", ev.Id)
	}
}

func TestTrackNeverDowngradesSession(t *testing.T) {
	tr, st, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "s1", EventType: "pageview", UTMSource: "tiktok"})
	require.NoError(t, err)

	weaker := []Request{
		{VisitorId: "v1", SessionId: "s1", EventType: "pageview", Referrer: "https://google.com/"},
		{VisitorId: "v1", SessionId: "s1", EventType: "pageview", Referrer: "https://instagram.com/"},
		{VisitorId: "v1", SessionId: "s1", EventType: "pageview", PageURL: storeURL},
		{VisitorId: "v1", SessionId: "s1", EventType: "pageview"},
	}
	for _, req := range weaker {
		res, err := tr.Track(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, entity.SourceTikTok, res.Source.Source)
		assert.Equal(t, entity.AttributionUTM, res.Source.Type)
	}
	for _, ev := range st.AllEvents() {
		assert.Equal(t, entity.SourceTikTok, ev.SourceRecord.Source)
	}
}

func TestTrackVisitorAndMobileHistory(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()

	_, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "old", EventType: "pageview", Referrer: "https://www.google.com/"})
	require.NoError(t, err)

	res, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "new", EventType: "pageview", PageURL: "https://shop.example.com/products/x"})
	require.NoError(t, err)
	assert.Equal(t, entity.SourceRecord{Source: entity.SourceGoogle, Type: entity.AttributionReferrer}, res.Source)

	_, err = tr.Track(ctx, Request{
		VisitorId: "phone-a", SessionId: "pa", EventType: "add_to_cart",
		UTMSource: "snapchat",
		Customer:  entity.CustomerInfo{Mobile: "+966 50 000 0000"},
	})
	require.NoError(t, err)

	res, err = tr.Track(ctx, Request{
		VisitorId: "laptop-b", SessionId: "pb", EventType: "purchase",
		PageURL:  "https://shop.example.com/checkout",
		Customer: entity.CustomerInfo{Mobile: "+966500000000"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SourceRecord{Source: entity.SourceSnapchat, Type: entity.AttributionUTM}, res.Source)
}

func TestTrackInheritedUTMKeepsWeight(t *testing.T) {
	tr, _, _ := newTracker(t)
	ctx := context.Background()
	partner := entity.SourceRecord{Source: "partner-x", Type: entity.AttributionUTM}

	_, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "s1", EventType: "pageview", UTMSource: "Partner-X"})
	require.NoError(t, err)

	res, err := tr.Track(ctx, Request{VisitorId: "v1", SessionId: "s2", EventType: "pageview", Referrer: "https://www.instagram.com/"})
	require.NoError(t, err)
	assert.Equal(t, partner, res.Source)

	res, err = tr.Track(ctx, Request{VisitorId: "v1", SessionId: "s2", EventType: "pageview", Referrer: "https://www.google.com/"})
	require.NoError(t, err)
	assert.Equal(t, partner, res.Source)
}

func TestTrackCrawler(t *testing.T) {
	tr, st, m := newTracker(t)
	res, err := tr.Track(context.Background(), Request{
		VisitorId:  "v1",
		SessionId:  "s1",
		EventType:  "pageview",
		ClientInfo: entity.ClientInfo{UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1)"},
	})
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Equal(t, OutcomeCrawler, res.Reason)
	assert.Empty(t, st.AllEvents())
	assert.Equal(t, 1, m.m[OutcomeCrawler])
}

func TestTrackDuplicatePurchase(t *testing.T) {
	tr, st, m := newTracker(t)
	ctx := context.Background()

	first := Request{
		VisitorId:   "v1",
		SessionId:   "s1",
		EventType:   "purchase",
		EventDetail: json.RawMessage(`{"order_id": 1001, "products": [{"name": "Memory Pillow"}]}`),
	}
	res, err := tr.Track(ctx, first)
	require.NoError(t, err)
	assert.True(t, res.Stored)

	again := first
	again.EventDetail = json.RawMessage(`{ "products":[{"name":"Memory Pillow"}], "order_id":"1001" }`)
	res, err = tr.Track(ctx, again)
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.Equal(t, OutcomeDuplicate, res.Reason)
	assert.Len(t, st.AllEvents(), 1)
	assert.Equal(t, 1, m.m[OutcomeDuplicate])
}

func TestTrackValidation(t *testing.T) {
	tr, st, _ := newTracker(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing visitor", req: Request{SessionId: "s", EventType: "pageview"}},
		{name: "missing session", req: Request{VisitorId: "v", EventType: "pageview"}},
		{name: "bad type", req: Request{VisitorId: "v", SessionId: "s", EventType: "click"}},
		{name: "malformed detail", req: Request{VisitorId: "v", SessionId: "s", EventType: "purchase", EventDetail: json.RawMessage(`{"order_id":`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Track(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, gerr.IsValidation(err))
		})
	}
	assert.Empty(t, st.AllEvents())
}

func TestTrackDropsInvalidEmail(t *testing.T) {
	tr, st, _ := newTracker(t)
	_, err := tr.Track(context.Background(), Request{
		VisitorId: "v", SessionId: "s", EventType: "add_to_cart",
		Customer: entity.CustomerInfo{CustomerId: "c1", Email: "not-an-email"},
	})
	require.NoError(t, err)
	evs := st.AllEvents()
	require.Len(t, evs, 1)
	assert.Empty(t, evs[0].Email)
	assert.Equal(t, "c1", evs[0].CustomerId)
}

func TestParseDetail(t *testing.T) {
	d, err := ParseDetail(json.RawMessage(`{"order_id": 77, "total": "120.50", "product_name": "Pillow Cover"}`))
	require.NoError(t, err)
	assert.Equal(t, "77", d.OrderId)
	assert.Equal(t, "120.50", d.Total)
	assert.Equal(t, []string{"Pillow Cover"}, d.ProductNames())

	d, err = ParseDetail(json.RawMessage(`{"products":[{"sku":"V1","product_name":"Memory Pillow","quantity":"2"}]}`))
	require.NoError(t, err)
	require.Len(t, d.Products, 1)
	assert.Equal(t, entity.EventProduct{SKU: "V1", Name: "Memory Pillow", Quantity: 2}, d.Products[0])

	d, err = ParseDetail(nil)
	require.NoError(t, err)
	assert.Empty(t, d.Products)
}

func TestParseDetailFreeForm(t *testing.T) {
	for _, raw := range []string{`"homepage"`, `["a","b"]`, `42`} {
		d, err := ParseDetail(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrMalformedDetail, raw)
		assert.Equal(t, entity.EventDetail{}, d, raw)
	}

	d, err := ParseDetail(json.RawMessage(`{"order_id":{"id":5},"product_name":"Pillow","products":["x",{"name":"Cover"}]}`))
	assert.ErrorIs(t, err, ErrMalformedDetail)
	assert.Empty(t, d.OrderId)
	assert.Equal(t, []string{"Cover", "Pillow"}, d.ProductNames())
}

func TestTrackKeepsEventWithMalformedDetail(t *testing.T) {
	tr, st, _ := newTracker(t)
	res, err := tr.Track(context.Background(), Request{
		VisitorId: "v1", SessionId: "s1", EventType: "pageview",
		EventDetail: json.RawMessage(`"homepage"`),
	})
	require.NoError(t, err)
	assert.True(t, res.Stored)

	evs := st.AllEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, entity.EventDetail{}, evs[0].Detail)
}
