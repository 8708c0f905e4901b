package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Static errors for image normalization.
var (
	// ErrEmptyImage is returned when no bytes are supplied.
	ErrEmptyImage = errors.New("media: empty image")
	// ErrNotImage is returned when the bytes do not sniff as an image.
	ErrNotImage = errors.New("media: not an image")
	// ErrInvalidDimensions is returned when the size limit is not positive.
	ErrInvalidDimensions = errors.New("media: max dimension must be positive")
	// ErrImageTooLarge is returned when the declared pixel count exceeds the
	// decode limit.
	ErrImageTooLarge = errors.New("media: image too large")
)

// Limits applied when none is set.
const (
	DefaultMaxDimension = 2048
	DefaultMaxPixels    = 50_000_000
)

// resizable maps sniffed types that imaging can decode and re-encode.
var resizable = map[string]imaging.Format{
	"image/png":  imaging.PNG,
	"image/jpeg": imaging.JPEG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
	"image/tiff": imaging.TIFF,
}

// ImageProcessor implements Processor with imaging.
type ImageProcessor struct {
	maxDim    int
	maxPixels int
}

// ImageOption is a function that configures an ImageProcessor.
type ImageOption func(*ImageProcessor)

// WithMaxPixels caps width x height of images that will be decoded.
// Non-positive values keep DefaultMaxPixels.
func WithMaxPixels(n int) ImageOption {
	return func(p *ImageProcessor) {
		if n > 0 {
			p.maxPixels = n
		}
	}
}

// NewImageProcessor creates an ImageProcessor with the given longer-edge
// limit.
func NewImageProcessor(maxDim int, opts ...ImageOption) (*ImageProcessor, error) {
	if maxDim == 0 {
		maxDim = DefaultMaxDimension
	}
	if maxDim < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimensions, maxDim)
	}
	p := &ImageProcessor{maxDim: maxDim, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NormalizeImage sniffs data and, for formats imaging can handle, fits it
// within maxDim x maxDim. Images already within the limit are returned
// untouched. Other image formats (webp, heic, ...) pass through unchanged.
// Images declaring more than maxPixels pixels are rejected before decoding.
func (p *ImageProcessor) NormalizeImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}

	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: detected %s", ErrNotImage, mimeType)
	}

	format, ok := resizable[mimeType]
	if !ok {
		return Image{Data: data, MimeType: mimeType}, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(p.maxPixels) {
		return Image{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, p.maxPixels)
	}

	if cfg.Width <= p.maxDim && cfg.Height <= p.maxDim {
		return Image{Data: data, MimeType: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrNotImage, err)
	}

	dst := imaging.Fit(src, p.maxDim, p.maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format, imaging.JPEGQuality(90)); err != nil {
		return Image{}, fmt.Errorf("media: encode resized image: %w", err)
	}

	bounds := dst.Bounds()
	return Image{
		Data:     buf.Bytes(),
		MimeType: mimeType,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Compile-time check that ImageProcessor implements Processor.
var _ Processor = (*ImageProcessor)(nil)
