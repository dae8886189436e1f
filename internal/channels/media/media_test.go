package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestProcess_ThumbnailsLargeImage(t *testing.T) {
	fixture := jpegFixture(t, 800, 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(fixture)
	}))
	defer srv.Close()

	p := NewProcessor()
	result, err := p.Process(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.MIMEType)
	assert.True(t, result.Thumbnailed)
	assert.LessOrEqual(t, result.ThumbnailWidth, maxThumbnailDimension)
	assert.LessOrEqual(t, result.ThumbnailHeight, maxThumbnailDimension)
	assert.Greater(t, result.ThumbnailBytes, 0)
	assert.Equal(t, len(fixture), result.OriginalBytes)
}

func TestProcess_NonImageAttachmentSkipsThumbnailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	p := NewProcessor()
	result, err := p.Process(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.MIMEType)
	assert.False(t, result.Thumbnailed)
}

func TestProcess_CorruptImageDegradesWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("not actually a jpeg"))
	}))
	defer srv.Close()

	p := NewProcessor()
	result, err := p.Process(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.False(t, result.Thumbnailed)
}

func TestProcess_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProcessor()
	_, err := p.Process(context.Background(), srv.URL, nil)

	require.Error(t, err)
}

func TestProcess_PassesHeadersThrough(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegFixture(t, 10, 10))
	}))
	defer srv.Close()

	p := NewProcessor()
	_, err := p.Process(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer token-abc"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer token-abc", gotAuth)
}

func TestAsEventData_OmitsThumbnailFieldsWhenNotThumbnailed(t *testing.T) {
	r := &Result{MIMEType: "application/pdf", OriginalBytes: 42}
	data := r.AsEventData()

	assert.Equal(t, "application/pdf", data["mime_type"])
	assert.Equal(t, 42, data["original_bytes"])
	assert.Equal(t, false, data["thumbnailed"])
	_, ok := data["thumbnail_width"]
	assert.False(t, ok)
}

func TestAsEventData_IncludesThumbnailFieldsWhenThumbnailed(t *testing.T) {
	r := &Result{MIMEType: "image/jpeg", OriginalBytes: 1000, Thumbnailed: true, ThumbnailWidth: 320, ThumbnailHeight: 240, ThumbnailBytes: 5000}
	data := r.AsEventData()

	assert.Equal(t, 320, data["thumbnail_width"])
	assert.Equal(t, 240, data["thumbnail_height"])
	assert.Equal(t, 5000, data["thumbnail_bytes"])
}
