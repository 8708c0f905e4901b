package credential

import (
	"log/slog"
	"math/rand/v2"
)

// ShuffleFunc permutes n elements in place through swap.
// rand.Shuffle satisfies it.
type ShuffleFunc func(n int, swap func(i, j int))

// Pool holds the loaded credentials. It is read-only after construction and
// safe for concurrent use as long as the ShuffleFunc is.
type Pool struct {
	creds   []Credential
	shuffle ShuffleFunc
}

// PoolOption is a function that configures a Pool.
type PoolOption func(*Pool)

// WithShuffle replaces the random permutation source, typically with a
// deterministic one in tests.
func WithShuffle(fn ShuffleFunc) PoolOption {
	return func(p *Pool) {
		if fn != nil {
			p.shuffle = fn
		}
	}
}

// NewPool creates a pool over already parsed credentials. An empty pool is
// allowed; dispatching against it fails with a configuration error.
func NewPool(creds []Credential, opts ...PoolOption) *Pool {
	p := &Pool{
		creds:   make([]Credential, len(creds)),
		shuffle: rand.Shuffle,
	}
	for i, c := range creds {
		c.index = i
		p.creds[i] = c
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load parses every secret. Malformed secrets are dropped with a warning;
// Load fails with ErrNoCredentials only when none of them parse.
func Load(secrets []string, logger *slog.Logger, opts ...PoolOption) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creds := make([]Credential, 0, len(secrets))
	for i, s := range secrets {
		c, err := Parse(s)
		if err != nil {
			logger.Warn("dropping malformed service account key",
				slog.Int("position", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		creds = append(creds, c)
	}

	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	return NewPool(creds, opts...), nil
}

// Len returns the number of credentials in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.creds)
}

// ShuffledOrder returns every credential exactly once in a random order.
// The returned slice is owned by the caller.
func (p *Pool) ShuffledOrder() []Credential {
	if p.Len() == 0 {
		return nil
	}
	order := make([]Credential, len(p.creds))
	copy(order, p.creds)
	p.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
