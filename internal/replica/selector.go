// internal/replica/selector.go
package replica

import (
	"math/rand"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Selector hands out replica aliases in round-robin order. The order is a
// permutation fixed at construction. With no replicas configured it hands
// out the primary alias forever.
type Selector struct {
	primary  string
	aliases  []string
	fallback bool
	current  atomic.Uint64
}

type options struct {
	logger  *zap.Logger
	rnd     *rand.Rand
	shuffle bool
}

// Option configures a Selector.
type Option func(*options)

// WithLogger sets the logger used for the missing-replicas warning.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRand sets the source of the startup shuffle.
func WithRand(rnd *rand.Rand) Option {
	return func(o *options) { o.rnd = rnd }
}

// WithoutShuffle keeps the configured order.
func WithoutShuffle() Option {
	return func(o *options) { o.shuffle = false }
}

// New builds a selector over aliases. The list is copied and shuffled
// once, so the first replica is not slammed by every process at startup.
func New(primary string, aliases []string, opts ...Option) *Selector {
	o := options{shuffle: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	s := &Selector{primary: primary}
	if len(aliases) == 0 {
		s.fallback = true
		s.aliases = []string{primary}
		o.logger.Warn("no replica databases configured, reads will use the primary",
			zap.String("primary", primary))
		return s
	}

	s.aliases = make([]string, len(aliases))
	copy(s.aliases, aliases)
	if o.shuffle {
		rnd := o.rnd
		if rnd == nil {
			rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		rnd.Shuffle(len(s.aliases), func(i, j int) {
			s.aliases[i], s.aliases[j] = s.aliases[j], s.aliases[i]
		})
	}

	o.logger.Debug("replica selector ready",
		zap.String("primary", primary),
		zap.Strings("order", s.aliases))
	return s
}

// Next returns the next alias. Safe for concurrent use.
func (s *Selector) Next() string {
	next := s.current.Inc()
	return s.aliases[(next-1)%uint64(len(s.aliases))]
}

// Primary returns the primary alias.
func (s *Selector) Primary() string {
	return s.primary
}

// Fallback reports whether no replicas were configured.
func (s *Selector) Fallback() bool {
	return s.fallback
}

// Len returns the number of replicas, 0 in fallback mode.
func (s *Selector) Len() int {
	if s.fallback {
		return 0
	}
	return len(s.aliases)
}

// Aliases returns the replica order, nil in fallback mode.
func (s *Selector) Aliases() []string {
	if s.fallback {
		return nil
	}
	ret := make([]string, len(s.aliases))
	copy(ret, s.aliases)
	return ret
}
