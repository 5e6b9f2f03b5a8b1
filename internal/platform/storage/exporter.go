package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

// ObjectWriter stores one object.
type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSWriter writes objects through a Cloud Storage client.
type GCSWriter struct {
	client *gcs.Client
}

// NewGCSWriter wraps client.
func NewGCSWriter(client *gcs.Client) (*GCSWriter, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return &GCSWriter{client: client}, nil
}

// WriteObject uploads data in a single request.
func (w *GCSWriter) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	writer := w.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	writer.ChunkSize = 0
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("storage: finalize %s: %w", object, err)
	}
	return nil
}

// ExportFile is a rendered download document.
type ExportFile struct {
	OwnerID     string
	RecordID    string
	FileName    string
	ContentType string
	Content     []byte
}

// ExportLink points at an uploaded export.
type ExportLink struct {
	Object    string
	URL       string
	ExpiresAt time.Time
}

// Exporter uploads export documents and returns signed download links.
type Exporter struct {
	bucket string
	writer ObjectWriter
	urls   *Client
	ttl    time.Duration
}

// NewExporter wires the writer and signer for bucket.
func NewExporter(bucket string, writer ObjectWriter, urls *Client, ttl time.Duration) (*Exporter, error) {
	bucket = strings.TrimSpace(bucket)
	switch {
	case bucket == "":
		return nil, errInvalidBucket
	case writer == nil:
		return nil, errors.New("storage: object writer is required")
	case urls == nil:
		return nil, errors.New("storage: signed url client is required")
	}
	return &Exporter{bucket: bucket, writer: writer, urls: urls, ttl: ttl}, nil
}

// Export uploads file and signs a download link for it.
func (e *Exporter) Export(ctx context.Context, file ExportFile) (ExportLink, error) {
	object, err := exportObject(file)
	if err != nil {
		return ExportLink{}, err
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	if err := e.writer.WriteObject(ctx, e.bucket, object, contentType, file.Content); err != nil {
		return ExportLink{}, err
	}
	signed, err := e.urls.SignedDownloadURL(ctx, e.bucket, object, DownloadOptions{
		ExpiresIn:    e.ttl,
		FileName:     file.FileName,
		ResponseType: contentType,
	})
	if err != nil {
		return ExportLink{}, err
	}
	return ExportLink{Object: object, URL: signed.URL, ExpiresAt: signed.ExpiresAt}, nil
}

// exportObject lays exports out as exports/{owner}/{record}/{file} so one
// owner's files can be listed or purged by prefix.
func exportObject(file ExportFile) (string, error) {
	parts := []struct{ field, value string }{
		{"owner id", file.OwnerID},
		{"record id", file.RecordID},
		{"file name", file.FileName},
	}
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, "exports")
	for _, part := range parts {
		value := strings.TrimSpace(part.value)
		if value == "" {
			return "", fmt.Errorf("storage: export %s is empty", part.field)
		}
		if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
			return "", fmt.Errorf("storage: export %s %q is not a single path segment", part.field, value)
		}
		segments = append(segments, value)
	}
	return strings.Join(segments, "/"), nil
}
