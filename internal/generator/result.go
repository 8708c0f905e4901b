package generator

// Placeholder assets returned with every failed Result so callers always
// have something renderable.
const (
	FallbackImageURL = "https://images.unsplash.com/photo-1620641788421-7a1c342ea42e?q=80&w=1000&auto=format&fit=crop"
	FallbackVideoURL = "https://cdn.coverr.co/videos/coverr-cloudy-sky-2765/1080p.mp4"
)

// Result is the outcome of a dispatch. Failures never carry a partial
// asset: AssetURL is then the modality's fallback placeholder.
type Result struct {
	Success              bool      `json:"success"`
	Modality             Modality  `json:"modality"`
	AssetURL             string    `json:"assetUrl"`
	MimeType             string    `json:"mimeType,omitempty"`
	IsDurable            bool      `json:"isDurable"`
	ShouldPersistHistory bool      `json:"shouldPersistHistory"`
	ErrorMessage         string    `json:"errorMessage,omitempty"`
	ErrorKind            ErrorKind `json:"errorKind,omitempty"`
	// Attempts is the number of credentials tried.
	Attempts int `json:"attempts"`
}

// FallbackURL returns the placeholder asset for m.
func FallbackURL(m Modality) string {
	if m == ModalityVideo {
		return FallbackVideoURL
	}
	return FallbackImageURL
}

// Failure builds a failed Result for err.
func Failure(m Modality, err error, attempts int) Result {
	msg := "unknown error during generation"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		Success:      false,
		Modality:     m,
		AssetURL:     FallbackURL(m),
		ErrorMessage: msg,
		ErrorKind:    kindOf(err),
		Attempts:     attempts,
	}
}
