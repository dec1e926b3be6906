package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

type syncStore struct {
	*MYSQLStore
}

// Sync returns an object implementing the SyncStatus interface.
func (ms *MYSQLStore) Sync() dependency.SyncStatus {
	return &syncStore{
		MYSQLStore: ms,
	}
}

// GetSyncStatus returns the status row of a sync type, a zero status when
// the sync never ran.
func (ms *syncStore) GetSyncStatus(ctx context.Context, syncType string) (*entity.SyncStatus, error) {
	query := `
		SELECT sync_type, high_water_mark, last_sync_at, status, records_synced,
			COALESCE(error_message, '') AS error_message
		FROM sync_status
		WHERE sync_type = :syncType`
	st, err := QueryNamedOne[entity.SyncStatus](ctx, ms.db, query, map[string]any{"syncType": syncType})
	if errors.Is(err, sql.ErrNoRows) {
		return &entity.SyncStatus{SyncType: syncType}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get sync status: %w", err)
	}
	return &st, nil
}

// UpdateSyncStatus updates the sync status for a given sync type.
func (ms *syncStore) UpdateSyncStatus(ctx context.Context, st *entity.SyncStatus) error {
	query := `
		INSERT INTO sync_status (
			sync_type, high_water_mark, last_sync_at, status, records_synced, error_message
		) VALUES (:syncType, :highWaterMark, :lastSyncAt, :status, :recordsSynced, :errorMessage)
		ON DUPLICATE KEY UPDATE
			high_water_mark = VALUES(high_water_mark),
			last_sync_at = VALUES(last_sync_at),
			status = VALUES(status),
			records_synced = VALUES(records_synced),
			error_message = VALUES(error_message),
			updated_at = CURRENT_TIMESTAMP`
	return ExecNamed(ctx, ms.db, query, map[string]any{
		"syncType":      st.SyncType,
		"highWaterMark": st.HighWaterMark,
		"lastSyncAt":    st.LastSyncAt.UTC(),
		"status":        st.Status,
		"recordsSynced": st.RecordsSynced,
		"errorMessage":  st.ErrorMessage,
	})
}
