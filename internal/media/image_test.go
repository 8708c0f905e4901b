package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewImageProcessor(t *testing.T) {
	p, err := NewImageProcessor(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDimension, p.maxDim)
	assert.Equal(t, DefaultMaxPixels, p.maxPixels)

	_, err = NewImageProcessor(-1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestNormalizeImage_WithinLimit(t *testing.T) {
	p, err := NewImageProcessor(64)
	require.NoError(t, err)

	data := pngBytes(t, 32, 16)
	img, err := p.NormalizeImage(data)
	require.NoError(t, err)

	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 32, img.Width)
	assert.Equal(t, 16, img.Height)
	assert.Equal(t, data, img.Data, "images within the limit are not re-encoded")
}

func TestNormalizeImage_Downscales(t *testing.T) {
	p, err := NewImageProcessor(50)
	require.NoError(t, err)

	img, err := p.NormalizeImage(pngBytes(t, 200, 100))
	require.NoError(t, err)

	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, 50, img.Width)
	assert.Equal(t, 25, img.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
}

func TestNormalizeImage_Rejects(t *testing.T) {
	p, err := NewImageProcessor(64)
	require.NoError(t, err)

	_, err = p.NormalizeImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = p.NormalizeImage([]byte("just some text"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestNormalizeImage_RejectsOversizedPixelCount(t *testing.T) {
	p, err := NewImageProcessor(64, WithMaxPixels(1000))
	require.NoError(t, err)

	// 100x100 compresses to a few hundred bytes but declares 10000 pixels.
	data := pngBytes(t, 100, 100)
	require.Less(t, len(data), 1000)

	_, err = p.NormalizeImage(data)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	img, err := p.NormalizeImage(pngBytes(t, 30, 30))
	require.NoError(t, err)
	assert.Equal(t, 30, img.Width)
}
