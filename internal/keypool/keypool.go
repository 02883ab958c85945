// Package keypool rotates an ordered set of API credentials.
//
// Each session (re)initialization draws one credential. The pool scans the
// configured order and serves the first credential not yet used this cycle;
// once every credential has had a turn the cycle resets. No credential is
// served twice before all others have been served once, which keeps a freshly
// quota-exhausted key out of rotation for as long as possible.
package keypool

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoCredentials is returned by New when the configured credential list is empty.
var ErrNoCredentials = errors.New("no API credentials configured")

// Pool serves credentials in round-robin cycles.
type Pool struct {
	mu   sync.Mutex
	keys []string
	used map[string]bool
}

// New creates a Pool over the given ordered credentials.
func New(keys []string) (*Pool, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{
		keys: append([]string(nil), keys...),
		used: make(map[string]bool, len(keys)),
	}, nil
}

// Next returns the next credential in the current cycle. When every
// credential has been served, the cycle resets and serving restarts from the
// first credential. Next never fails on a constructed Pool.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, k := range p.keys {
		if !p.used[k] {
			p.used[k] = true
			log.Debug().Int("key_index", i).Int("used_this_cycle", len(p.used)).Msg("Serving API credential")
			return k
		}
	}

	// Full coverage reached: start a new cycle.
	log.Info().Int("pool_size", len(p.keys)).Msg("All API credentials used this cycle, resetting rotation")
	p.used = make(map[string]bool, len(p.keys))
	p.used[p.keys[0]] = true
	return p.keys[0]
}

// Size returns the number of configured credentials.
func (p *Pool) Size() int {
	return len(p.keys)
}
