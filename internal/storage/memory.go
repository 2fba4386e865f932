package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const watchBuffer = 64

// MemoryArea is an in-process storage context shared by any number of tabs.
type MemoryArea struct {
	mu          sync.Mutex
	data        map[string]string
	used        int
	quota       int
	unavailable bool
	watchers    map[*memoryWatcher]struct{}
}

type memoryWatcher struct {
	tab      string
	ch       chan Change
	inflight sync.WaitGroup
}

// MemoryOption configures a MemoryArea.
type MemoryOption func(*MemoryArea)

// WithQuota limits the total size of keys and values in bytes.
func WithQuota(bytes int) MemoryOption {
	return func(a *MemoryArea) { a.quota = bytes }
}

// NewMemoryArea creates an empty storage context.
func NewMemoryArea(opts ...MemoryOption) *MemoryArea {
	a := &MemoryArea{
		data:     make(map[string]string),
		watchers: make(map[*memoryWatcher]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SetUnavailable makes every operation fail with ErrUnavailable, the way a
// sandboxed context denies access to persistent storage.
func (a *MemoryArea) SetUnavailable(v bool) {
	a.mu.Lock()
	a.unavailable = v
	a.mu.Unlock()
}

// Tab opens a new tab with a random id.
func (a *MemoryArea) Tab() *MemoryTab {
	return a.TabWithID(uuid.NewString())
}

// TabWithID opens a tab with a fixed id.
func (a *MemoryArea) TabWithID(id string) *MemoryTab {
	return &MemoryTab{area: a, id: id}
}

func (a *MemoryArea) publish(c Change) {
	a.mu.Lock()
	targets := make([]*memoryWatcher, 0, len(a.watchers))
	for w := range a.watchers {
		if c.Synthetic || w.tab != c.Source {
			w.inflight.Add(1)
			targets = append(targets, w)
		}
	}
	a.mu.Unlock()

	for _, w := range targets {
		w.offer(c)
		w.inflight.Done()
	}
}

// offer never blocks the writer. A full buffer drops its oldest change so
// the watcher still ends up seeing the latest one.
func (w *memoryWatcher) offer(c Change) {
	for range 2 {
		select {
		case w.ch <- c:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// MemoryTab is a Store over a MemoryArea.
type MemoryTab struct {
	area *MemoryArea
	id   string
}

var _ Store = (*MemoryTab)(nil)

func (t *MemoryTab) ID() string { return t.id }

func (t *MemoryTab) Get(_ context.Context, key string) (string, error) {
	a := t.area
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unavailable {
		return "", ErrUnavailable
	}
	v, ok := a.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (t *MemoryTab) Set(_ context.Context, key, value string) error {
	a := t.area
	a.mu.Lock()
	if a.unavailable {
		a.mu.Unlock()
		return ErrUnavailable
	}

	used := a.used + len(value)
	if old, ok := a.data[key]; ok {
		used -= len(old)
	} else {
		used += len(key)
	}
	if a.quota > 0 && used > a.quota {
		a.mu.Unlock()
		return ErrQuotaExceeded
	}
	a.data[key] = value
	a.used = used
	a.mu.Unlock()

	a.publish(Change{Key: key, Source: t.id})
	return nil
}

func (t *MemoryTab) Delete(_ context.Context, key string) error {
	a := t.area
	a.mu.Lock()
	if a.unavailable {
		a.mu.Unlock()
		return ErrUnavailable
	}
	old, ok := a.data[key]
	if ok {
		delete(a.data, key)
		a.used -= len(key) + len(old)
	}
	a.mu.Unlock()

	if ok {
		a.publish(Change{Key: key, Source: t.id})
	}
	return nil
}

func (t *MemoryTab) Keys(_ context.Context, prefix string) ([]string, error) {
	a := t.area
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.unavailable {
		return nil, ErrUnavailable
	}
	var keys []string
	for k := range a.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *MemoryTab) Dispatch(_ context.Context, key string) error {
	t.area.publish(Change{Key: key, Source: t.id, Synthetic: true})
	return nil
}

func (t *MemoryTab) Watch(ctx context.Context) (<-chan Change, error) {
	a := t.area
	w := &memoryWatcher{
		tab: t.id,
		ch:  make(chan Change, watchBuffer),
	}

	a.mu.Lock()
	if a.unavailable {
		a.mu.Unlock()
		return nil, ErrUnavailable
	}
	a.watchers[w] = struct{}{}
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		delete(a.watchers, w)
		a.mu.Unlock()

		w.inflight.Wait()
		close(w.ch)
	}()

	return w.ch, nil
}
