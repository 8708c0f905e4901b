package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/genspace-api/internal/config"
	"github.com/maauso/genspace-api/internal/generator"
	"github.com/maauso/genspace-api/internal/job"
	"github.com/maauso/genspace-api/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		VertexLocation:       "us-central1",
		DefaultImageModel:    "imagen-4.0-generate-001",
		DefaultVideoModel:    "veo-3.0-generate-001",
		VideoResolution:      "1080p",
		RetryPolicy:          "any",
		PollInterval:         time.Second,
		PollMaxAttempts:      3,
		HistoryMaxURLLength:  900000,
		ReferenceImageMaxDim: 2048,
		StorageKeyPrefix:     "space",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_WithoutCredentials(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(), discardLogger())
	require.NoError(t, err)
	require.NotNil(t, deps.Jobs)
	assert.Empty(t, deps.MediaDir)

	finished, err := deps.Jobs.Run(context.Background(), generator.Request{
		Prompt:   "a quiet harbor",
		Modality: generator.ModalityImage,
	})
	require.NoError(t, err)

	assert.Equal(t, job.StatusFailed, finished.Status)
	require.NotNil(t, finished.Result)
	assert.Equal(t, generator.KindConfiguration, finished.Result.ErrorKind)
	assert.Equal(t, 0, finished.Result.Attempts)
	assert.Equal(t, "imagen-4.0-generate-001", finished.Request.ModelID)
}

func TestNewDependencies_LocalMedia(t *testing.T) {
	cfg := testConfig()
	cfg.LocalMediaDir = t.TempDir()
	cfg.PublicBaseURL = "http://localhost:8080"

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, cfg.LocalMediaDir, deps.MediaDir)
}

func TestInitStorage(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		store, err := initStorage(context.Background(), testConfig(), discardLogger())
		require.NoError(t, err)
		assert.IsType(t, storage.Disabled{}, store)
	})

	t.Run("local", func(t *testing.T) {
		cfg := testConfig()
		cfg.LocalMediaDir = t.TempDir()
		cfg.PublicBaseURL = "https://media.example.com/"

		store, err := initStorage(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		require.IsType(t, &storage.LocalStorage{}, store)
		assert.Equal(t, cfg.LocalMediaDir, store.(*storage.LocalStorage).Root())
	})

	t.Run("s3 wins over local", func(t *testing.T) {
		cfg := testConfig()
		cfg.S3Bucket = "assets"
		cfg.S3Region = "eu-west-1"
		cfg.AWSAccessKeyID = "AKIDEXAMPLE"
		cfg.AWSSecretAccessKey = "secret"
		cfg.LocalMediaDir = t.TempDir()
		cfg.PublicBaseURL = "https://media.example.com"

		store, err := initStorage(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &storage.S3Storage{}, store)
	})
}
