// Package generator implements image and video generation dispatch:
// payload building, credential rotation, long-running operation polling,
// and normalization of provider responses into a single Result.
package generator

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// Modality is the generation kind.
type Modality string

// Supported modalities.
const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
)

// SampleSize is the output size class of an image.
type SampleSize string

// Supported image sample sizes.
const (
	SampleSize1K SampleSize = "1K"
	SampleSize2K SampleSize = "2K"
	SampleSize4K SampleSize = "4K"
)

// Model allow-lists.
var (
	ImageModels = []string{
		"imagen-3.0-generate-001",
		"imagen-3.0-fast-generate-001",
		"imagen-3.0-generate-002",
		"imagen-4.0-generate-001",
		"imagen-4.0-fast-generate-001",
		"imagen-4.0-ultra-generate-001",
	}
	VideoModels = []string{
		"veo-3.0-generate-001",
		"veo-3.0-fast-generate-001",
		"veo-3.1-generate-001",
		"veo-3.1-fast-generate-001",
		"veo-2.0-generate-001",
	}
)

var (
	imageAspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}
	videoAspectRatios = []string{"16:9", "9:16"}
	sampleSizes       = []SampleSize{SampleSize1K, SampleSize2K, SampleSize4K}
	videoDurations    = []int{4, 6, 8}
)

// Defaults applied to requests that leave optional fields empty.
const (
	DefaultImageModel       = "imagen-3.0-generate-001"
	DefaultVideoModel       = "veo-3.0-generate-001"
	DefaultImageAspectRatio = "1:1"
	DefaultVideoAspectRatio = "16:9"
	DefaultSampleSize       = SampleSize1K
	DefaultDurationSeconds  = 8
)

// anonymousOwner partitions storage for requests without an owner.
const anonymousOwner = "anonymous"

// ReferenceImage is an encoded image (PNG, JPEG, ...) supplied with an
// image request.
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

// Request is the normalized input of a dispatch.
type Request struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Modality    Modality `json:"modality" validate:"required,oneof=image video"`
	ModelID     string   `json:"modelId" validate:"required"`
	AspectRatio string   `json:"aspectRatio" validate:"required"`
	OwnerID     string   `json:"ownerId" validate:"max=128,excludesall=/"`

	// Image only.
	SampleSize      SampleSize       `json:"sampleSize,omitempty"`
	ReferenceImages []ReferenceImage `json:"-"`

	// Video only.
	DurationSeconds int  `json:"durationSeconds,omitempty"`
	WithAudio       bool `json:"withAudio,omitempty"`

	// AllowAnyModel skips the model allow-list check.
	AllowAnyModel bool `json:"-"`
}

// Defaults holds the model identifiers used when a request names none.
type Defaults struct {
	ImageModel string
	VideoModel string
}

// WithDefaults returns a copy of r with empty optional fields filled in.
func (r Request) WithDefaults(d Defaults) Request {
	switch r.Modality {
	case ModalityImage:
		if r.ModelID == "" {
			r.ModelID = firstNonEmpty(d.ImageModel, DefaultImageModel)
		}
		if r.AspectRatio == "" {
			r.AspectRatio = DefaultImageAspectRatio
		}
		if r.SampleSize == "" {
			r.SampleSize = DefaultSampleSize
		}
	case ModalityVideo:
		if r.ModelID == "" {
			r.ModelID = firstNonEmpty(d.VideoModel, DefaultVideoModel)
		}
		if r.AspectRatio == "" {
			r.AspectRatio = DefaultVideoAspectRatio
		}
		if r.DurationSeconds == 0 {
			r.DurationSeconds = DefaultDurationSeconds
		}
	}
	return r
}

// Owner returns the storage partition for the request.
func (r Request) Owner() string {
	if r.OwnerID == "" {
		return anonymousOwner
	}
	return r.OwnerID
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(validateRequest, Request{})
	})
	return validate
}

// Validate checks r against the modality-specific rules. Errors wrap
// ErrInvalidRequest.
func (r Request) Validate() error {
	if err := requestValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func validateRequest(sl validator.StructLevel) {
	r := sl.Current().Interface().(Request)

	if strings.TrimSpace(r.Prompt) == "" {
		sl.ReportError(r.Prompt, "Prompt", "Prompt", "notblank", "")
	}

	switch r.Modality {
	case ModalityImage:
		if !slices.Contains(sampleSizes, r.SampleSize) {
			sl.ReportError(r.SampleSize, "SampleSize", "SampleSize", "oneof", "1K 2K 4K")
		}
		if !slices.Contains(imageAspectRatios, r.AspectRatio) {
			sl.ReportError(r.AspectRatio, "AspectRatio", "AspectRatio", "oneof", strings.Join(imageAspectRatios, " "))
		}
		if !r.AllowAnyModel && !slices.Contains(ImageModels, r.ModelID) {
			sl.ReportError(r.ModelID, "ModelID", "ModelID", "image_model", "")
		}
		for _, img := range r.ReferenceImages {
			if !isImage(img.Data) {
				sl.ReportError(r.ReferenceImages, "ReferenceImages", "ReferenceImages", "image", "")
				break
			}
		}
	case ModalityVideo:
		if !slices.Contains(videoDurations, r.DurationSeconds) {
			sl.ReportError(r.DurationSeconds, "DurationSeconds", "DurationSeconds", "oneof", "4 6 8")
		}
		if !slices.Contains(videoAspectRatios, r.AspectRatio) {
			sl.ReportError(r.AspectRatio, "AspectRatio", "AspectRatio", "oneof", strings.Join(videoAspectRatios, " "))
		}
		if !r.AllowAnyModel && !slices.Contains(VideoModels, r.ModelID) {
			sl.ReportError(r.ModelID, "ModelID", "ModelID", "video_model", "")
		}
		if len(r.ReferenceImages) > 0 {
			sl.ReportError(r.ReferenceImages, "ReferenceImages", "ReferenceImages", "image_only", "")
		}
	}
}

// isImage reports whether data sniffs as an image format.
func isImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
