package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

func TestCustomers(t *testing.T) {
	cs := New().Customers()
	ctx := context.Background()

	rec := &entity.CustomerRecord{UnifiedKey: "email:a@b.com", VisitorIds: []string{"v1"}}
	require.NoError(t, cs.UpsertCustomer(ctx, rec))
	require.NotZero(t, rec.Id)

	got, err := cs.GetCustomerByUnifiedKey(ctx, "EMAIL:a@b.com")
	require.NoError(t, err)
	assert.Equal(t, rec.Id, got.Id)

	_, err = cs.GetCustomerByUnifiedKey(ctx, "email:x@y.z")
	assert.ErrorIs(t, err, gerr.ErrNotFound)

	dup := &entity.CustomerRecord{UnifiedKey: "email:a@b.com", VisitorIds: []string{"v2"}}
	assert.ErrorIs(t, cs.UpsertCustomer(ctx, dup), gerr.ErrConflict)

	got.VisitorIds = append(got.VisitorIds, "v2")
	require.NoError(t, cs.UpsertCustomer(ctx, got))
	got, err = cs.GetCustomerByVisitorIds(ctx, []string{"v2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, got.VisitorIds)
}

func TestFoldedEvents(t *testing.T) {
	cs := New().Customers()
	ctx := context.Background()

	require.NoError(t, cs.MarkFolded(ctx, 1, []int64{1, 2}))
	folded, err := cs.FoldedEvents(ctx, []int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{2: true}, folded)

	assert.ErrorIs(t, cs.MarkFolded(ctx, 2, []int64{3, 2}), gerr.ErrConflict)
	folded, err = cs.FoldedEvents(ctx, []int64{3})
	require.NoError(t, err)
	assert.Empty(t, folded)
}

func TestVisitorSourcesDistinct(t *testing.T) {
	es := New().Events()
	ctx := context.Background()

	for _, src := range []string{entity.SourceGoogle, entity.SourceGoogle, entity.SourceUnknown, entity.SourceTikTok} {
		_, err := es.InsertEvent(ctx, &entity.VisitorEventInsert{
			VisitorId:    "v1",
			EventType:    entity.EventPageView,
			UTM:          entity.UTM{Source: "newsletter"},
			SourceRecord: entity.SourceRecord{Source: src, Type: entity.AttributionReferrer},
		})
		require.NoError(t, err)
	}
	recs, err := es.VisitorSources(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []entity.SourceRecord{
		{Source: entity.SourceGoogle, Type: entity.AttributionReferrer},
		{Source: entity.SourceTikTok, Type: entity.AttributionReferrer},
	}, recs)
}
