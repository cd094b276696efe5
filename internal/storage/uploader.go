package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/rs/zerolog/log"
)

// ResultUploader publishes each competitor table to a storage bucket as
// <runID>/<competitor>.csv and <runID>/<competitor>.jsonl.
type ResultUploader struct {
	client *Client
	bucket string
}

// NewResultUploader creates an uploader writing into bucket.
func NewResultUploader(client *Client, bucket string) *ResultUploader {
	return &ResultUploader{client: client, bucket: bucket}
}

// Name identifies the uploader in logs.
func (u *ResultUploader) Name() string { return "storage" }

// Publish uploads both renderings of the table. The CSV is uploaded first; a
// failure stops before the JSON lines file.
func (u *ResultUploader) Publish(ctx context.Context, runID string, table *results.Table) error {
	base := fmt.Sprintf("%s/%s", runID, strings.ToLower(table.Competitor))

	files := []struct {
		ext         string
		contentType string
		write       func(io.Writer, *results.Table) error
	}{
		{".csv", "text/csv; charset=utf-8", results.WriteCSV},
		{".jsonl", "application/x-ndjson", results.WriteJSONL},
	}

	for _, f := range files {
		var buf bytes.Buffer
		if err := f.write(&buf, table); err != nil {
			return fmt.Errorf("failed to render %s%s: %w", base, f.ext, err)
		}

		path, err := u.client.Upload(ctx, u.bucket, base+f.ext, buf.Bytes(), f.contentType)
		if err != nil {
			return err
		}

		log.Info().
			Str("path", path).
			Str("url", u.client.GetPublicURL(u.bucket, base+f.ext)).
			Int("bytes", buf.Len()).
			Msg("Uploaded result file")
	}

	return nil
}
