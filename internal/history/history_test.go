package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/genspace-api/internal/generator"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := generator.Request{
		Prompt:          "waves",
		Modality:        generator.ModalityVideo,
		ModelID:         "veo-3.0-generate-001",
		AspectRatio:     "16:9",
		DurationSeconds: 8,
		WithAudio:       true,
		OwnerID:         "u1",
	}
	res := generator.Result{Success: true, AssetURL: "https://cdn/x.mp4", IsDurable: true, ShouldPersistHistory: true}

	rec, err := NewRecord(req, res, 0, now)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "u1", rec.OwnerID)
	assert.Equal(t, generator.ModalityVideo, rec.Modality)
	assert.Equal(t, "https://cdn/x.mp4", rec.AssetURL)
	assert.True(t, rec.IsDurable)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, Settings{AspectRatio: "16:9", DurationSeconds: 8, WithAudio: true}, rec.Settings)
}

func TestNewRecord_AnonymousImage(t *testing.T) {
	req := generator.Request{Prompt: "fox", Modality: generator.ModalityImage, ModelID: "imagen-3.0-generate-001", AspectRatio: "1:1", SampleSize: "2K"}
	res := generator.Result{Success: true, AssetURL: "data:image/png;base64,AA==", ShouldPersistHistory: true}

	rec, err := NewRecord(req, res, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "anonymous", rec.OwnerID)
	assert.Equal(t, Settings{AspectRatio: "1:1", SampleSize: "2K"}, rec.Settings)
	assert.Equal(t, 2, rec.ReferenceImageCount)
}

func TestNewRecord_NotPersistable(t *testing.T) {
	req := generator.Request{Prompt: "p", Modality: generator.ModalityVideo}

	_, err := NewRecord(req, generator.Result{Success: true, ShouldPersistHistory: false}, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotPersistable)

	_, err = NewRecord(req, generator.Result{Success: false}, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotPersistable)
}

func TestMemoryRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	add := func(id, owner string, m generator.Modality, offset time.Duration) {
		require.NoError(t, repo.Add(ctx, Record{ID: id, OwnerID: owner, Modality: m, CreatedAt: base.Add(offset)}))
	}
	add("a", "u1", generator.ModalityImage, 1*time.Minute)
	add("b", "u1", generator.ModalityVideo, 3*time.Minute)
	add("c", "u1", generator.ModalityImage, 2*time.Minute)
	add("d", "u2", generator.ModalityImage, 5*time.Minute)

	all, err := repo.ListByOwner(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(all))

	images, err := repo.ListByOwner(ctx, "u1", Filter{Modality: generator.ModalityImage})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(images))

	limited, err := repo.ListByOwner(ctx, "u1", Filter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(limited))

	none, err := repo.ListByOwner(ctx, "nobody", Filter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, Record{ID: "a", OwnerID: "u1"}))
	require.NoError(t, repo.Add(ctx, Record{ID: "b", OwnerID: "u1"}))

	assert.ErrorIs(t, repo.Delete(ctx, "u2", "a"), ErrRecordNotFound, "records are scoped to their owner")

	require.NoError(t, repo.Delete(ctx, "u1", "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", "a"), ErrRecordNotFound)

	left, err := repo.ListByOwner(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(left))
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
