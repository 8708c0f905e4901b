// Package media provides data-URL encoding and reference image
// normalization.
package media

// Processor prepares user-supplied reference images for transmission.
type Processor interface {
	// NormalizeImage checks that data is an image and downscales it when its
	// longer edge exceeds the configured limit.
	NormalizeImage(data []byte) (Image, error)
}

// Image is an encoded image ready to be sent.
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}
