// Package limiter throttles costly API calls and locks out repeated bad tokens.
package limiter

import (
	"context"
	"crypto/sha256"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a call identified by key may proceed.
type Limiter interface {
	// Allow reports whether the call is allowed and, if not, when to retry.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Rate is a token bucket per key.
type Rate struct {
	every time.Duration
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

var _ Limiter = (*Rate)(nil)

// NewRate allows perMinute calls per key with the given burst.
// perMinute <= 0 disables limiting.
func NewRate(perMinute, burst int) *Rate {
	if burst < 1 {
		burst = 1
	}
	var every time.Duration
	if perMinute > 0 {
		every = time.Minute / time.Duration(perMinute)
	}
	return &Rate{every: every, burst: burst, buckets: map[string]*rate.Limiter{}}
}

// Allow consumes one token for key.
func (l *Rate) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.every == 0 {
		return true, 0, nil
	}
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	r := b.Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d, nil
	}
	return true, 0, nil
}

// Lockout blocks a peer after maxFails failures within window, for blockFor.
type Lockout struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	mu    sync.Mutex
	peers map[[sha256.Size]byte]*peerState
}

type peerState struct {
	fails        int
	first        time.Time
	blockedUntil time.Time
}

// NewLockout constructs a failure lockout.
func NewLockout(window time.Duration, maxFails int, blockFor time.Duration) *Lockout {
	if maxFails < 1 {
		maxFails = math.MaxInt
	}
	return &Lockout{window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now, peers: map[[sha256.Size]byte]*peerState{}}
}

// HashPeer returns a stable hash for a peer address to avoid keeping raw addresses.
func HashPeer(addr string) [sha256.Size]byte { return sha256.Sum256([]byte(addr)) }

// Allow reports whether the peer is currently allowed and a retry-after duration.
func (l *Lockout) Allow(_ context.Context, peer string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.peers[HashPeer(peer)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); st.blockedUntil.After(now) {
		return false, st.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Failure records a failed attempt and reports whether the peer is now blocked.
func (l *Lockout) Failure(peer string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := HashPeer(peer)
	now := l.now()
	st, ok := l.peers[key]
	if !ok || now.Sub(st.first) > l.window {
		st = &peerState{first: now}
		l.peers[key] = st
	}
	st.fails++
	if st.fails >= l.maxFails {
		st.blockedUntil = now.Add(l.blockFor)
		st.fails, st.first = 0, now
		return true, l.blockFor
	}
	return false, 0
}

// Success resets the peer's counters.
func (l *Lockout) Success(peer string) {
	l.mu.Lock()
	delete(l.peers, HashPeer(peer))
	l.mu.Unlock()
}
