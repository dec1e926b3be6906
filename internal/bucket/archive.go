package bucket

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
)

// Archive stores one raw upload of a report run under
// <base folder>/<run id>/<name> and returns its URL.
func (b *Bucket) Archive(ctx context.Context, runId, name string, r io.Reader, size int64) (string, error) {
	fp := b.constructFullPath(runId, name)

	ui, err := b.Client.PutObject(ctx, b.S3BucketName, fp, r, size,
		minio.PutObjectOptions{
			ContentType: contentTypeFor(name),
			UserMetadata: map[string]string{
				"run-id": runId,
			},
		})
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't archive upload",
			slog.String("run_id", runId),
			slog.String("name", name),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("can't put object %s: %w", fp, err)
	}
	return b.getCDNURL(ui.Key), nil
}
