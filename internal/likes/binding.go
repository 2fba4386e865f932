package likes

import (
	"context"
	"sync"

	"github.com/oggyb/fahrme/internal/storage"
)

// Interactions is the part of the store a Binding drives.
type Interactions interface {
	GetStatus(ctx context.Context, userID string, t Target) (Status, error)
	Like(ctx context.Context, userID string, t Target) (Status, error)
	Unlike(ctx context.Context, userID string, t Target) (Status, error)
}

// Binding is a consumer-side view of one (user, target) status. Toggle flips
// the local status immediately, then settles on what the store returns; if
// the store call fails, it falls back to a fresh read instead of keeping the
// optimistic guess.
type Binding struct {
	store    Interactions
	userID   string
	target   Target
	onChange func(Status)

	mu     sync.Mutex
	status Status
}

// NewBinding reads the initial status. onChange, if set, is called with every
// status the binding shows, optimistic ones included.
func NewBinding(ctx context.Context, store Interactions, userID string, t Target, onChange func(Status)) *Binding {
	b := &Binding{store: store, userID: userID, target: t, onChange: onChange}
	b.Refresh(ctx)
	return b
}

func (b *Binding) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Toggle flips the like state optimistically and reconciles with the store.
func (b *Binding) Toggle(ctx context.Context) (Status, error) {
	b.mu.Lock()
	guess := b.status
	guess.Liked = !guess.Liked
	if guess.Liked {
		guess.LikeCount++
	} else {
		guess.LikeCount = max(guess.LikeCount-1, 0)
	}
	b.mu.Unlock()
	b.set(guess)

	var (
		st  Status
		err error
	)
	if guess.Liked {
		st, err = b.store.Like(ctx, b.userID, b.target)
	} else {
		st, err = b.store.Unlike(ctx, b.userID, b.target)
	}
	if err != nil {
		return b.Refresh(ctx), err
	}

	b.set(st)
	return st, nil
}

// Refresh re-reads the authoritative status. A failed read shows the zero
// status, which is what a logged-out viewer would see.
func (b *Binding) Refresh(ctx context.Context) Status {
	st, err := b.store.GetStatus(ctx, b.userID, b.target)
	if err != nil {
		st = Status{}
	}
	b.set(st)
	return st
}

// Run refreshes the binding whenever like state changes in any tab, until
// changes is closed or ctx is done.
func (b *Binding) Run(ctx context.Context, changes <-chan storage.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if storage.IsLikesKey(c.Key) {
				b.Refresh(ctx)
			}
		}
	}
}

func (b *Binding) set(st Status) {
	b.mu.Lock()
	b.status = st
	b.mu.Unlock()
	if b.onChange != nil {
		b.onChange(st)
	}
}
