// Package likes keeps per-user like membership and per-target like counters.
//
// Membership and counters are stored independently: a counter may be seeded
// from historical data before any membership exists, so a counter is not
// required to equal the number of members that point at its target.
package likes

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/storage"
)

// Mode is where the store keeps its state.
type Mode int

const (
	// ModePersistent keeps state in the shared durable storage.
	ModePersistent Mode = iota
	// ModeMemory keeps state in this instance only. Entered once durable
	// storage fails and never left again.
	ModeMemory
)

func (m Mode) String() string {
	if m == ModeMemory {
		return "memory"
	}
	return "persistent"
}

const (
	DefaultRateLimit  = 30
	DefaultRateWindow = time.Minute
)

type Option func(*Store)

// WithRateLimit allows limit like/unlike calls per user per window.
// A limit of zero disables rate limiting.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Store) { s.rate = slidingWindow{limit: limit, window: window} }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store is the like interaction store.
type Store struct {
	mu      sync.Mutex
	durable storage.Store
	mode    Mode
	// mem is the state in ModeMemory, last is the latest state seen in
	// ModePersistent and seeds mem on fallback.
	mem  *snapshot
	last *snapshot

	rate slidingWindow
	now  func() time.Time
	log  *slog.Logger
}

// New creates a store on durable. Durable storage is probed once with a write
// and a delete; if either fails, or durable is nil, the store starts in
// ModeMemory.
func New(ctx context.Context, durable storage.Store, opts ...Option) *Store {
	s := &Store{
		durable: durable,
		rate:    slidingWindow{limit: DefaultRateLimit, window: DefaultRateWindow},
		now:     time.Now,
		log:     logger.L(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "likes")

	if durable == nil {
		s.enterMemory(errors.New("no durable storage"))
		return s
	}
	if err := durable.Set(ctx, storage.KeyProbe, "1"); err != nil {
		s.enterMemory(err)
		return s
	}
	if err := durable.Delete(ctx, storage.KeyProbe); err != nil {
		s.enterMemory(err)
	}
	return s
}

// Mode reports the current storage mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// GetStatus reads the status of target for userID. It never counts against
// the rate limit.
func (s *Store) GetStatus(ctx context.Context, userID string, t Target) (Status, error) {
	if err := validate(userID, t); err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx).status(userID, t), nil
}

// Like records that userID likes t. Liking twice is a no-op; the counter only
// moves on a real absent->present transition. A rate-limited call changes
// nothing and returns the current status.
func (s *Store) Like(ctx context.Context, userID string, t Target) (Status, error) {
	return s.mutate(ctx, userID, t, true)
}

// Unlike mirrors Like; the counter never drops below zero.
func (s *Store) Unlike(ctx context.Context, userID string, t Target) (Status, error) {
	return s.mutate(ctx, userID, t, false)
}

// Toggle likes t if userID does not like it yet, and unlikes it otherwise.
func (s *Store) Toggle(ctx context.Context, userID string, t Target) (Status, error) {
	st, err := s.GetStatus(ctx, userID, t)
	if err != nil {
		return st, err
	}
	if st.Liked {
		return s.Unlike(ctx, userID, t)
	}
	return s.Like(ctx, userID, t)
}

// InitializeCounters seeds the counter of t with count unless t already has
// a counter. Negative seeds are stored as zero.
func (s *Store) InitializeCounters(ctx context.Context, t Target, count int) (Status, error) {
	if !t.Valid() {
		return Status{}, ErrInvalidTarget
	}
	s.mu.Lock()
	snap := s.load(ctx)
	if n, ok := snap.counts[t.counterKey()]; ok {
		s.mu.Unlock()
		return Status{LikeCount: n}, nil
	}
	snap.counts[t.counterKey()] = max(count, 0)
	stored := s.persist(ctx, snap, "")
	st := Status{LikeCount: snap.counts[t.counterKey()]}
	s.mu.Unlock()

	if stored {
		s.signal(ctx)
	}
	return st, nil
}

// LikedTargets lists what userID likes, sorted.
func (s *Store) LikedTargets(ctx context.Context, userID string) ([]Target, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx).targetsOf(userID), nil
}

func (s *Store) mutate(ctx context.Context, userID string, t Target, like bool) (Status, error) {
	if err := validate(userID, t); err != nil {
		return Status{}, err
	}
	s.mu.Lock()
	snap := s.load(ctx)
	if !s.allow(ctx, userID) {
		s.log.Debug("like rate limit hit", "user", userID, "target", t.String())
		st := snap.status(userID, t)
		s.mu.Unlock()
		return st, nil
	}

	var changed, stored bool
	if like {
		changed = snap.add(userID, t)
	} else {
		changed = snap.remove(userID, t)
	}
	if changed {
		stored = s.persist(ctx, snap, userID)
	}
	st := snap.status(userID, t)
	s.mu.Unlock()

	// observers in this tab take s.mu to re-read, so signal without it
	if stored {
		s.signal(ctx)
	}
	return st, nil
}

// load returns the state to operate on. In ModePersistent it is read fresh
// from durable storage; a failed read switches to ModeMemory.
func (s *Store) load(ctx context.Context) *snapshot {
	if s.mode == ModeMemory {
		return s.mem
	}

	snap := newSnapshot()
	var records []record
	if err := storage.GetJSON(ctx, s.durable, storage.KeyLikes, &records); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.enterMemory(err)
		return s.mem
	}
	if err := storage.GetJSON(ctx, s.durable, storage.KeyLikeCounts, &snap.counts); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.enterMemory(err)
		return s.mem
	}
	if snap.counts == nil {
		snap.counts = make(map[string]int)
	}
	for _, r := range records {
		snap.likes[r] = struct{}{}
	}
	s.last = snap
	return snap
}

// persist writes snap back in ModePersistent and reports whether it did.
// userID, when set, also refreshes that user's interaction cache.
func (s *Store) persist(ctx context.Context, snap *snapshot, userID string) bool {
	if s.mode == ModeMemory {
		return false
	}
	if err := storage.SetJSON(ctx, s.durable, storage.KeyLikes, snap.records()); err != nil {
		s.enterMemory(err)
		return false
	}
	if err := storage.SetJSON(ctx, s.durable, storage.KeyLikeCounts, snap.counts); err != nil {
		s.enterMemory(err)
		return false
	}
	if userID != "" {
		if err := storage.SetJSON(ctx, s.durable, storage.InteractionsKey(userID), snap.targetsOf(userID)); err != nil {
			s.enterMemory(err)
			return false
		}
	}
	return true
}

// signal tells every tab, this one included, that like state changed.
func (s *Store) signal(ctx context.Context) {
	if err := s.durable.Dispatch(ctx, storage.KeyLikes); err != nil {
		s.log.Warn("like change signal failed", "err", err)
	}
}

// allow applies the per-user rate limit. Rate limiting needs durable storage
// and is skipped in ModeMemory.
func (s *Store) allow(ctx context.Context, userID string) bool {
	if s.mode == ModeMemory || !s.rate.enabled() {
		return true
	}

	key := storage.LikeRateKey(userID)
	var stamps []int64
	if err := storage.GetJSON(ctx, s.durable, key, &stamps); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.enterMemory(err)
		return true
	}
	stamps, ok := s.rate.allow(stamps, s.now())
	if !ok {
		return false
	}
	if err := storage.SetJSON(ctx, s.durable, key, stamps); err != nil {
		s.enterMemory(err)
	}
	return true
}

func (s *Store) enterMemory(cause error) {
	if s.mode == ModeMemory && s.mem != nil {
		return
	}
	s.mode = ModeMemory
	if s.last != nil {
		s.mem = s.last
	} else {
		s.mem = newSnapshot()
	}
	s.log.Warn("durable storage unavailable, keeping likes in memory", "err", cause)
}

// record is one membership entry as stored.
type record struct {
	UserID     string     `json:"userId"`
	TargetType TargetType `json:"targetType"`
	TargetID   string     `json:"targetId"`
}

type snapshot struct {
	likes  map[record]struct{}
	counts map[string]int
}

func newSnapshot() *snapshot {
	return &snapshot{
		likes:  make(map[record]struct{}),
		counts: make(map[string]int),
	}
}

func recordOf(userID string, t Target) record {
	return record{UserID: userID, TargetType: t.Type, TargetID: t.ID}
}

func (s *snapshot) status(userID string, t Target) Status {
	_, liked := s.likes[recordOf(userID, t)]
	return Status{Liked: liked, LikeCount: s.counts[t.counterKey()]}
}

func (s *snapshot) add(userID string, t Target) bool {
	r := recordOf(userID, t)
	if _, ok := s.likes[r]; ok {
		return false
	}
	s.likes[r] = struct{}{}
	s.counts[t.counterKey()]++
	return true
}

func (s *snapshot) remove(userID string, t Target) bool {
	r := recordOf(userID, t)
	if _, ok := s.likes[r]; !ok {
		return false
	}
	delete(s.likes, r)
	s.counts[t.counterKey()] = max(s.counts[t.counterKey()]-1, 0)
	return true
}

func (s *snapshot) records() []record {
	out := make([]record, 0, len(s.likes))
	for r := range s.likes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.TargetType != b.TargetType {
			return a.TargetType < b.TargetType
		}
		return a.TargetID < b.TargetID
	})
	return out
}

func (s *snapshot) targetsOf(userID string) []Target {
	var out []Target
	for _, r := range s.records() {
		if r.UserID == userID {
			out = append(out, Target{Type: r.TargetType, ID: r.TargetID})
		}
	}
	return out
}
