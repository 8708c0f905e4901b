package generator

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/maauso/genspace-api/internal/vertex"
)

// DefaultVideoResolution is the resolution requested for videos.
const DefaultVideoResolution = "1080p"

// Call is a fully built provider call: where it goes and what it carries.
type Call struct {
	Target      vertex.Target
	Body        vertex.PredictRequest
	LongRunning bool
}

// PayloadBuilder turns a Request into a provider Call. It performs no I/O.
type PayloadBuilder struct {
	videoResolution string
}

// NewPayloadBuilder creates a builder. An empty resolution selects
// DefaultVideoResolution.
func NewPayloadBuilder(videoResolution string) *PayloadBuilder {
	if videoResolution == "" {
		videoResolution = DefaultVideoResolution
	}
	return &PayloadBuilder{videoResolution: videoResolution}
}

// Build constructs the call for req against the given project. Only the
// first reference image is attached: the image endpoint accepts a single
// reference per instance.
func (b *PayloadBuilder) Build(req Request, projectID string) (Call, error) {
	if projectID == "" {
		return Call{}, fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Call{}, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if req.ModelID == "" {
		return Call{}, fmt.Errorf("%w: model id is required", ErrInvalidRequest)
	}

	target := vertex.Target{ProjectID: projectID, Model: req.ModelID}

	switch req.Modality {
	case ModalityImage:
		if req.SampleSize == "" || req.AspectRatio == "" {
			return Call{}, fmt.Errorf("%w: image requests need sample size and aspect ratio", ErrInvalidRequest)
		}

		instance := vertex.Instance{Prompt: req.Prompt}
		if len(req.ReferenceImages) > 0 {
			ref := req.ReferenceImages[0]
			instance.Image = &vertex.Image{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(ref.Data),
				MimeType:           ref.MimeType,
			}
		}

		return Call{
			Target: target,
			Body: vertex.PredictRequest{
				Instances: []vertex.Instance{instance},
				Parameters: vertex.ImageParameters{
					SampleCount:     1,
					SampleImageSize: string(req.SampleSize),
					AspectRatio:     req.AspectRatio,
				},
			},
		}, nil

	case ModalityVideo:
		if req.DurationSeconds <= 0 || req.AspectRatio == "" {
			return Call{}, fmt.Errorf("%w: video requests need duration and aspect ratio", ErrInvalidRequest)
		}

		return Call{
			Target: target,
			Body: vertex.PredictRequest{
				Instances: []vertex.Instance{{Prompt: req.Prompt}},
				Parameters: vertex.VideoParameters{
					SampleCount:     1,
					Resolution:      b.videoResolution,
					GenerateAudio:   req.WithAudio,
					DurationSeconds: req.DurationSeconds,
					AspectRatio:     req.AspectRatio,
				},
			},
			LongRunning: true,
		}, nil

	default:
		return Call{}, fmt.Errorf("%w: unknown modality %q", ErrInvalidRequest, req.Modality)
	}
}
