package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/genspace-api/internal/storage"
	"github.com/maauso/genspace-api/internal/vertex"
)

func fixedID() string { return "fixed-id" }

func TestNormalize_RelaysInlineBytes(t *testing.T) {
	store := newMemoryStorage()
	n := NewNormalizer(store, nil, WithIDGenerator(fixedID))
	data := tinyPNG(t)

	res := n.Normalize(context.Background(), Request{Modality: ModalityImage, OwnerID: "42"}, Asset{Data: data, MimeType: "image/png"})

	assert.True(t, res.Success)
	assert.True(t, res.IsDurable)
	assert.True(t, res.ShouldPersistHistory)
	assert.Equal(t, "https://cdn.example.com/space/user_42/images/fixed-id.png", res.AssetURL)
	assert.Equal(t, data, store.objects["space/user_42/images/fixed-id.png"])
	assert.Equal(t, "image/png", store.types["space/user_42/images/fixed-id.png"])
}

func TestNormalize_VideoKey(t *testing.T) {
	store := newMemoryStorage()
	n := NewNormalizer(store, nil, WithIDGenerator(fixedID), WithKeyPrefix("/gallery/"))

	res := n.Normalize(context.Background(), Request{Modality: ModalityVideo}, Asset{Data: []byte("not really mp4")})

	assert.True(t, res.IsDurable)
	assert.True(t, res.ShouldPersistHistory)
	assert.Equal(t, "video/mp4", res.MimeType)
	assert.Equal(t, "https://cdn.example.com/gallery/user_anonymous/videos/fixed-id.mp4", res.AssetURL)
}

func TestNormalize_RelayNotConfigured(t *testing.T) {
	n := NewNormalizer(storage.Disabled{}, nil)
	data := tinyPNG(t)

	img := n.Normalize(context.Background(), Request{Modality: ModalityImage}, Asset{Data: data})
	assert.True(t, img.Success)
	assert.False(t, img.IsDurable)
	assert.True(t, strings.HasPrefix(img.AssetURL, "data:image/png;base64,"))
	assert.True(t, img.ShouldPersistHistory, "small inline images are still persisted")

	vid := n.Normalize(context.Background(), Request{Modality: ModalityVideo}, Asset{Data: []byte("mp4")})
	assert.True(t, vid.Success)
	assert.False(t, vid.IsDurable)
	assert.True(t, strings.HasPrefix(vid.AssetURL, "data:video/mp4;base64,"))
	assert.False(t, vid.ShouldPersistHistory, "inline videos are never persisted")
}

func TestNormalize_RelayFailureDegrades(t *testing.T) {
	store := newMemoryStorage()
	store.err = errors.New("access denied")
	n := NewNormalizer(store, nil)

	res := n.Normalize(context.Background(), Request{Modality: ModalityImage}, Asset{Data: tinyPNG(t), MimeType: "image/png"})

	assert.True(t, res.Success)
	assert.False(t, res.IsDurable)
	assert.True(t, strings.HasPrefix(res.AssetURL, "data:image/png;base64,"))
}

func TestNormalize_ImageSizeGuard(t *testing.T) {
	n := NewNormalizer(nil, nil, WithHistoryMaxURLLength(64))

	res := n.Normalize(context.Background(), Request{Modality: ModalityImage}, Asset{Data: make([]byte, 1024), MimeType: "image/png"})

	assert.True(t, res.Success)
	assert.False(t, res.IsDurable)
	assert.False(t, res.ShouldPersistHistory)
}

func TestNormalize_RemoteURI(t *testing.T) {
	n := NewNormalizer(newMemoryStorage(), nil)

	gcs := n.Normalize(context.Background(), Request{Modality: ModalityVideo}, Asset{URI: "gs://bucket/out/v.mp4", MimeType: "video/mp4"})
	assert.True(t, gcs.Success)
	assert.Equal(t, "gs://bucket/out/v.mp4", gcs.AssetURL)
	assert.False(t, gcs.IsDurable)
	assert.False(t, gcs.ShouldPersistHistory)

	public := n.Normalize(context.Background(), Request{Modality: ModalityVideo}, Asset{URI: "https://storage.googleapis.com/bucket/v.mp4"})
	assert.True(t, public.IsDurable)
	assert.True(t, public.ShouldPersistHistory)
}

func TestNormalize_ImageBucketURINotPersisted(t *testing.T) {
	n := NewNormalizer(newMemoryStorage(), nil)

	res := n.Normalize(context.Background(), Request{Modality: ModalityImage}, Asset{URI: "gs://bucket/out/i.png", MimeType: "image/png"})
	assert.True(t, res.Success)
	assert.False(t, res.IsDurable)
	assert.False(t, res.ShouldPersistHistory)

	public := n.Normalize(context.Background(), Request{Modality: ModalityImage}, Asset{URI: "https://storage.googleapis.com/bucket/i.png"})
	assert.True(t, public.ShouldPersistHistory)
}

func TestExtractPrediction(t *testing.T) {
	_, err := extractPrediction(vertex.EmptyPredictions{})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = extractPrediction(vertex.Predictions{Items: []vertex.Prediction{{}}})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = extractPrediction(vertex.Predictions{Items: []vertex.Prediction{{BytesBase64Encoded: "%%%"}}})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	asset, err := extractPrediction(vertex.Predictions{Items: []vertex.Prediction{{BytesBase64Encoded: "aGVsbG8=", MimeType: "image/jpeg"}}})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), asset.Data)
	assert.Equal(t, "image/jpeg", asset.MimeType)
}

func TestExtractVideo(t *testing.T) {
	_, err := extractVideo(vertex.OperationDone{FilteredCount: 1, FilteredReasons: []string{"celebrity"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "celebrity")

	asset, err := extractVideo(vertex.OperationDone{Videos: []vertex.Video{{GCSURI: "gs://b/v.mp4"}}})
	require.NoError(t, err)
	assert.Equal(t, "gs://b/v.mp4", asset.URI)
}

func TestFailure(t *testing.T) {
	img := Failure(ModalityImage, ErrConfiguration, 0)
	assert.False(t, img.Success)
	assert.Equal(t, FallbackImageURL, img.AssetURL)
	assert.Equal(t, KindConfiguration, img.ErrorKind)
	assert.NotEmpty(t, img.ErrorMessage)
	assert.False(t, img.ShouldPersistHistory)

	vid := Failure(ModalityVideo, nil, 2)
	assert.Equal(t, FallbackVideoURL, vid.AssetURL)
	assert.Equal(t, "unknown error during generation", vid.ErrorMessage)
}
