package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/maauso/genspace-api/internal/media"
	"github.com/maauso/genspace-api/internal/storage"
	"github.com/maauso/genspace-api/internal/vertex"
)

// Default values used by the normalizer.
const (
	DefaultKeyPrefix           = "space"
	DefaultHistoryMaxURLLength = 900_000
	defaultImageMimeType       = "image/png"
	defaultVideoMimeType       = "video/mp4"
)

// Asset is the raw output extracted from a provider response: either
// inline bytes or a remote URI.
type Asset struct {
	Data     []byte
	URI      string
	MimeType string
}

// extractPrediction pulls the first asset out of a predict response.
func extractPrediction(resp vertex.PredictResponse) (Asset, error) {
	preds, ok := resp.(vertex.Predictions)
	if !ok || len(preds.Items) == 0 {
		return Asset{}, fmt.Errorf("%w: no predictions", ErrMalformedResponse)
	}
	p := preds.Items[0]
	return toAsset(p.BytesBase64Encoded, p.GCSURI, p.MimeType)
}

// extractVideo pulls the first video out of a finished operation.
func extractVideo(done vertex.OperationDone) (Asset, error) {
	if len(done.Videos) == 0 {
		if done.FilteredCount > 0 {
			return Asset{}, fmt.Errorf("%w: %d video(s) filtered: %s",
				ErrMalformedResponse, done.FilteredCount, strings.Join(done.FilteredReasons, "; "))
		}
		return Asset{}, fmt.Errorf("%w: operation finished without videos", ErrMalformedResponse)
	}
	v := done.Videos[0]
	return toAsset(v.BytesBase64Encoded, v.GCSURI, v.MimeType)
}

func toAsset(b64, uri, mimeType string) (Asset, error) {
	if b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return Asset{}, fmt.Errorf("%w: inline payload is not base64: %w", ErrMalformedResponse, err)
		}
		if len(data) == 0 {
			return Asset{}, fmt.Errorf("%w: inline payload is empty", ErrMalformedResponse)
		}
		return Asset{Data: data, MimeType: mimeType}, nil
	}
	if uri != "" {
		return Asset{URI: uri, MimeType: mimeType}, nil
	}
	return Asset{}, fmt.Errorf("%w: neither inline bytes nor uri", ErrMalformedResponse)
}

// Normalizer turns an extracted Asset into a Result: it relays inline
// bytes to durable storage when possible and decides whether the result
// may be written to history.
type Normalizer struct {
	storage             storage.Storage
	keyPrefix           string
	historyMaxURLLength int
	newID               func() string
	logger              *slog.Logger
}

// NormalizerOption is a function that configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithKeyPrefix sets the first segment of relay object keys.
func WithKeyPrefix(prefix string) NormalizerOption {
	return func(n *Normalizer) {
		if prefix != "" {
			n.keyPrefix = strings.Trim(prefix, "/")
		}
	}
}

// WithHistoryMaxURLLength sets the image persistence size guard.
func WithHistoryMaxURLLength(limit int) NormalizerOption {
	return func(n *Normalizer) {
		n.historyMaxURLLength = limit
	}
}

// WithIDGenerator replaces the object name generator.
func WithIDGenerator(fn func() string) NormalizerOption {
	return func(n *Normalizer) {
		n.newID = fn
	}
}

// NewNormalizer creates a Normalizer. A nil store behaves like
// storage.Disabled.
func NewNormalizer(store storage.Storage, logger *slog.Logger, opts ...NormalizerOption) *Normalizer {
	if store == nil {
		store = storage.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		storage:             store,
		keyPrefix:           DefaultKeyPrefix,
		historyMaxURLLength: DefaultHistoryMaxURLLength,
		newID:               uuid.NewString,
		logger:              logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the successful Result for asset. It never fails: a
// relay failure degrades to an inline data URL.
func (n *Normalizer) Normalize(ctx context.Context, req Request, asset Asset) Result {
	res := Result{Success: true, Modality: req.Modality}

	if len(asset.Data) > 0 {
		mimeType := n.mimeTypeFor(req.Modality, asset)
		res.MimeType = mimeType

		key := n.objectKey(req, mimeType)
		durableURL, err := n.storage.Store(ctx, key, mimeType, bytes.NewReader(asset.Data))
		switch {
		case err == nil:
			res.AssetURL = durableURL
			res.IsDurable = true
		case errors.Is(err, storage.ErrNotConfigured):
			n.logger.Debug("durable relay not configured, using data URL",
				slog.String("modality", string(req.Modality)),
			)
			res.AssetURL = media.EncodeDataURL(mimeType, asset.Data)
		default:
			n.logger.Warn("durable relay failed, using data URL",
				slog.String("modality", string(req.Modality)),
				slog.String("key", key),
				slog.String("error", fmt.Errorf("%w: %w", ErrStorageRelay, err).Error()),
			)
			res.AssetURL = media.EncodeDataURL(mimeType, asset.Data)
		}
	} else {
		res.AssetURL = asset.URI
		res.MimeType = asset.MimeType
		res.IsDurable = isDurableURI(asset.URI)
	}

	res.ShouldPersistHistory = n.shouldPersist(req.Modality, res)
	return res
}

// shouldPersist is the persistence gate. Videos are only worth a history
// record once durable; images are kept inline as long as the URL stays
// under the size guard. An image left at a bucket URI is not renderable
// and is not kept.
func (n *Normalizer) shouldPersist(m Modality, res Result) bool {
	if !res.Success {
		return false
	}
	if m == ModalityVideo {
		return res.IsDurable
	}
	if !res.IsDurable && !strings.HasPrefix(res.AssetURL, "data:") {
		return false
	}
	if n.historyMaxURLLength > 0 && len(res.AssetURL) > n.historyMaxURLLength {
		return false
	}
	return true
}

// objectKey builds {prefix}/user_{owner}/{images|videos}/{id}{ext}.
func (n *Normalizer) objectKey(req Request, mimeType string) string {
	folder := "images"
	if req.Modality == ModalityVideo {
		folder = "videos"
	}

	ext := ".bin"
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}

	return fmt.Sprintf("%s/user_%s/%s/%s%s", n.keyPrefix, req.Owner(), folder, n.newID(), ext)
}

// mimeTypeFor picks the declared type, then a sniffed type of the right
// family, then the modality default.
func (n *Normalizer) mimeTypeFor(m Modality, asset Asset) string {
	family, fallback := "image/", defaultImageMimeType
	if m == ModalityVideo {
		family, fallback = "video/", defaultVideoMimeType
	}

	if strings.HasPrefix(asset.MimeType, family) {
		return asset.MimeType
	}
	if sniffed := mimetype.Detect(asset.Data).String(); strings.HasPrefix(sniffed, family) {
		return sniffed
	}
	return fallback
}

// isDurableURI reports whether uri can be fetched by a browser as-is.
// gs:// URIs need platform credentials and are not.
func isDurableURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}
