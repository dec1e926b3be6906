package bucket

import (
	"context"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
)

// ArchivedFile is an upload stored for a report run.
type ArchivedFile struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListRun lists the uploads archived for a report run.
func (b *Bucket) ListRun(ctx context.Context, runId string) ([]ArchivedFile, error) {
	objectCh := b.Client.ListObjects(ctx, b.S3BucketName, minio.ListObjectsOptions{
		Prefix:    path.Join(b.BaseFolder, runId) + "/",
		Recursive: true,
	})

	files := []ArchivedFile{}
	for o := range objectCh {
		if o.Err != nil {
			return nil, o.Err
		}
		files = append(files, ArchivedFile{
			Key:          o.Key,
			URL:          b.getCDNURL(o.Key),
			Size:         o.Size,
			LastModified: o.LastModified,
		})
	}
	return files, nil
}
