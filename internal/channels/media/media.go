// Package media downloads inbound channel attachments and produces a
// bounded-size thumbnail for any image attachment. Grounded on
// plugin/chat_apps/media/handler.go's download-then-validate shape, with
// the processing step itself rebuilt against
// github.com/disintegration/imaging (the teacher's own handler only does
// Whisper transcription and tesseract OCR, neither of which SPEC_FULL.md's
// media-logging feature needs) instead of exec-ing an OCR binary. Bounded
// concurrency is grounded on server/router/api/v1/v1.go's
// thumbnailSemaphore, adapted from a package-level field to one owned by
// Processor.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentThumbnails bounds simultaneous Process calls, matching the
// teacher's limit of 3 concurrent thumbnail generations.
const maxConcurrentThumbnails = 3

const (
	maxThumbnailDimension = 320
	maxDownloadBytes      = 20 * 1024 * 1024
)

// Result summarizes one downloaded attachment, meant to be recorded
// verbatim as a model.MessageEvent's Data payload.
type Result struct {
	MIMEType        string
	OriginalBytes   int
	Thumbnailed     bool
	ThumbnailWidth  int
	ThumbnailHeight int
	ThumbnailBytes  int
}

// Processor downloads and thumbnails inbound media.
type Processor struct {
	client *http.Client
	sem    *semaphore.Weighted
}

// NewProcessor builds a Processor with a bounded download timeout and at
// most maxConcurrentThumbnails simultaneous downloads/thumbnail jobs, so a
// burst of inbound media across channels can't exhaust outbound
// connections or CPU on image decoding.
func NewProcessor() *Processor {
	return &Processor{
		client: &http.Client{Timeout: 20 * time.Second},
		sem:    semaphore.NewWeighted(maxConcurrentThumbnails),
	}
}

// Process downloads url, passing headers verbatim (e.g. a WhatsApp bearer
// token the platform requires to fetch its own media URLs), and thumbnails
// the result if its Content-Type is an image. A non-image attachment still
// yields a Result with OriginalBytes/MIMEType populated and Thumbnailed
// false; a corrupt image download degrades the same way rather than
// failing the whole call, since a malformed attachment shouldn't drop the
// rest of the inbound turn.
func (p *Processor) Process(ctx context.Context, url string, headers map[string]string) (*Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("media: acquire slot: %w", err)
	}
	defer p.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("media: download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("media: read body: %w", err)
	}

	result := &Result{MIMEType: resp.Header.Get("Content-Type"), OriginalBytes: len(data)}
	if !strings.HasPrefix(result.MIMEType, "image/") {
		return result, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return result, nil
	}

	thumb := imaging.Fit(img, maxThumbnailDimension, maxThumbnailDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return result, nil
	}

	bounds := thumb.Bounds()
	result.Thumbnailed = true
	result.ThumbnailWidth = bounds.Dx()
	result.ThumbnailHeight = bounds.Dy()
	result.ThumbnailBytes = buf.Len()
	return result, nil
}

// AsEventData flattens a Result into the map shape model.MessageEvent.Data
// expects.
func (r *Result) AsEventData() map[string]any {
	data := map[string]any{
		"mime_type":      r.MIMEType,
		"original_bytes": r.OriginalBytes,
		"thumbnailed":    r.Thumbnailed,
	}
	if r.Thumbnailed {
		data["thumbnail_width"] = r.ThumbnailWidth
		data["thumbnail_height"] = r.ThumbnailHeight
		data["thumbnail_bytes"] = r.ThumbnailBytes
	}
	return data
}
