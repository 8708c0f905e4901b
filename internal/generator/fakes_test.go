package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maauso/genspace-api/internal/credential"
	"github.com/maauso/genspace-api/internal/storage"
	"github.com/maauso/genspace-api/internal/vertex"
)

// testPool builds a pool of n credentials named proj-0..proj-n-1, kept in
// load order.
func testPool(t *testing.T, n int) *credential.Pool {
	t.Helper()
	creds := make([]credential.Credential, 0, n)
	for i := 0; i < n; i++ {
		b, err := json.Marshal(map[string]string{
			"type":           "service_account",
			"project_id":     fmt.Sprintf("proj-%d", i),
			"private_key_id": fmt.Sprintf("key%d", i),
			"private_key":    "not-used",
		})
		require.NoError(t, err)
		c, err := credential.Parse(string(b))
		require.NoError(t, err)
		creds = append(creds, c)
	}
	return credential.NewPool(creds, credential.WithShuffle(func(int, func(i, j int)) {}))
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

// fakeBroker mints "tok-<project>" unless the project is listed in fail.
type fakeBroker struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (b *fakeBroker) Mint(_ context.Context, c credential.Credential) (credential.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c.ProjectID)
	if b.fail[c.ProjectID] {
		return credential.Token{}, fmt.Errorf("%w: %s: invalid_grant", credential.ErrAuthFailure, c.ID())
	}
	return credential.Token{Value: "tok-" + c.ProjectID, Expiry: time.Now().Add(time.Hour)}, nil
}

// fakeAPI dispatches every call to the configured function and records the
// projects that were called.
type fakeAPI struct {
	mu         sync.Mutex
	predict    func(target vertex.Target, req vertex.PredictRequest) (vertex.PredictResponse, error)
	submit     func(target vertex.Target) (string, error)
	fetch      func(target vertex.Target, op string) (vertex.Operation, error)
	projects   []string
	fetchCalls int
	lastBody   vertex.PredictRequest
}

func (a *fakeAPI) Predict(_ context.Context, target vertex.Target, token string, req vertex.PredictRequest) (vertex.PredictResponse, error) {
	a.mu.Lock()
	a.projects = append(a.projects, target.ProjectID)
	a.lastBody = req
	a.mu.Unlock()
	if token != "tok-"+target.ProjectID {
		return nil, fmt.Errorf("token %q does not belong to %s", token, target.ProjectID)
	}
	return a.predict(target, req)
}

func (a *fakeAPI) PredictLongRunning(_ context.Context, target vertex.Target, _ string, req vertex.PredictRequest) (string, error) {
	a.mu.Lock()
	a.projects = append(a.projects, target.ProjectID)
	a.lastBody = req
	a.mu.Unlock()
	return a.submit(target)
}

func (a *fakeAPI) FetchOperation(_ context.Context, target vertex.Target, _ string, op string) (vertex.Operation, error) {
	a.mu.Lock()
	a.fetchCalls++
	a.mu.Unlock()
	return a.fetch(target, op)
}

func (a *fakeAPI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.projects) + a.fetchCalls
}

// memoryStorage is an in-memory durable relay.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memoryStorage) Store(_ context.Context, key, contentType string, data io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	s.types[key] = contentType
	return "https://cdn.example.com/" + key, nil
}

var _ storage.Storage = (*memoryStorage)(nil)

// recordingObserver counts instrumentation callbacks.
type recordingObserver struct {
	mu       sync.Mutex
	attempts []string
	ticks    int
	results  []Result
}

func (o *recordingObserver) ObserveAttempt(_ Modality, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, outcome)
}

func (o *recordingObserver) ObservePollTick(Modality) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
}

func (o *recordingObserver) ObserveResult(res Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

// noSleep makes pollers tick immediately.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
