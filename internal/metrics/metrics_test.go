package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/genspace-api/internal/generator"
)

func TestPrometheus_ObserveAttempt(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	p.ObserveAttempt(generator.ModalityImage, generator.OutcomeRotate)
	p.ObserveAttempt(generator.ModalityImage, generator.OutcomeRotate)
	p.ObserveAttempt(generator.ModalityImage, generator.OutcomeSuccess)

	assert.InDelta(t, 2, testutil.ToFloat64(p.attempts.WithLabelValues("image", "rotate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.attempts.WithLabelValues("image", "success")), 0)
}

func TestPrometheus_ObservePollTick(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	for range 3 {
		p.ObservePollTick(generator.ModalityVideo)
	}

	assert.InDelta(t, 3, testutil.ToFloat64(p.pollTicks.WithLabelValues("video")), 0)
}

func TestPrometheus_ObserveResult(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	p.ObserveResult(generator.Result{Success: true, Modality: generator.ModalityVideo}, 42*time.Second)
	p.ObserveResult(generator.Failure(generator.ModalityVideo, generator.ErrTimeout, 1), time.Minute)

	assert.InDelta(t, 1, testutil.ToFloat64(p.generations.WithLabelValues("video", ResultSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.generations.WithLabelValues("video", ResultFailure)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(p.duration))
}

func TestPrometheus_Handler(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	p.ObserveAttempt(generator.ModalityImage, generator.OutcomeAbort)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `genspace_dispatch_attempts_total{modality="image",outcome="abort"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
