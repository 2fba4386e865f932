package auth

import (
	"context"
	"sync"
)

// Readiness flips once, when the first attempt to resolve the current user
// has finished (or has been given up on). It never flips back.
type Readiness struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason string
}

func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Mark makes the readiness true. Only the first call has an effect; it
// reports whether this call was the one.
func (r *Readiness) Mark(reason string) bool {
	marked := false
	r.once.Do(func() {
		r.mu.Lock()
		r.reason = reason
		r.mu.Unlock()
		close(r.done)
		marked = true
	})
	return marked
}

func (r *Readiness) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Reason is what made it ready: "user", "probe" or "timeout".
func (r *Readiness) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

func (r *Readiness) Done() <-chan struct{} { return r.done }

func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
