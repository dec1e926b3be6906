package bucket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
)

// toRemoveCh converts a string slice to a <-chan minio.ObjectInfo
func toRemoveCh(keys []string) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(keys))
	go func() {
		for _, key := range keys {
			ch <- minio.ObjectInfo{Key: key}
		}
		close(ch)
	}()
	return ch
}

// DeleteRun removes every archived upload of a report run.
func (b *Bucket) DeleteRun(ctx context.Context, runId string) error {
	files, err := b.ListRun(ctx, runId)
	if err != nil {
		return fmt.Errorf("can't list run %s: %w", runId, err)
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Key)
	}

	var errMsgs []string
	errorCh := b.Client.RemoveObjects(ctx, b.Config.S3BucketName, toRemoveCh(keys), minio.RemoveObjectsOptions{})
	for dErr := range errorCh {
		slog.Default().ErrorContext(ctx, "failed to delete object from s3 bucket",
			slog.String("object_key", dErr.ObjectName),
			slog.String("err", dErr.Err.Error()),
		)
		errMsgs = append(errMsgs, dErr.Err.Error())
	}
	if len(errMsgs) > 0 {
		return fmt.Errorf("errors during deletion: %s", strings.Join(errMsgs, "; "))
	}
	return nil
}
