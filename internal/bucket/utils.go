package bucket

import (
	"fmt"
	"path"
	"strings"
)

const (
	contentTypeCSV    = "text/csv"
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return contentTypeCSV
	case ".json":
		return contentTypeJSON
	default:
		return contentTypeBinary
	}
}

func (b *Bucket) constructFullPath(folder, fileName string) string {
	return path.Clean(path.Join(b.BaseFolder, folder, path.Base(fileName)))
}

func (b *Bucket) getCDNURL(filePath string) string {
	if b.SubdomainEndpoint != "" {
		return fmt.Sprintf("https://%s/%s", b.SubdomainEndpoint, filePath)
	}
	return fmt.Sprintf("https://%s.%s/%s", b.S3BucketName, b.S3Endpoint, filePath)
}
