package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fahrme/internal/auth"
	"github.com/oggyb/fahrme/internal/garage"
	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/storage"
)

// recorder collects notifications in a goroutine-safe way.
type recorder struct {
	mu    sync.Mutex
	users []*auth.User
	ch    chan *auth.User
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *auth.User, 64)}
}

func (r *recorder) fn(u *auth.User) {
	r.mu.Lock()
	r.users = append(r.users, u)
	r.mu.Unlock()
	select {
	case r.ch <- u:
	default:
	}
}

func (r *recorder) next(t *testing.T) *auth.User {
	t.Helper()
	select {
	case u := <-r.ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no auth notification")
	}
	return nil
}

func newSync(t *testing.T, tab storage.Store, opts ...auth.Option) *auth.Synchronizer {
	t.Helper()
	opts = append([]auth.Option{auth.WithLogger(logger.Discard())}, opts...)
	return auth.NewSynchronizer(auth.NewEmbeddedBackend(tab, logger.Discard()), tab, opts...)
}

func TestSynchronizer_LoginNotifiesAndReturnsUser(t *testing.T) {
	ctx := context.Background()
	s := newSync(t, storage.NewMemoryArea().Tab())
	rec := newRecorder()
	s.OnAuthStateChanged(rec.fn)

	res := s.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw", Name: "A"})
	require.True(t, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, res.User.ID, rec.next(t).ID)

	assert.True(t, s.Ready(), "a found user makes the synchronizer ready")
	assert.Equal(t, auth.GuardAllow, auth.Guard(s.State()))

	res = s.Login(ctx, auth.Credentials{Email: "a@b.com", Password: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, auth.MsgWrongPassword, res.Error)

	res = s.Login(ctx, auth.Credentials{Email: "x@b.com", Password: "pw"})
	assert.Equal(t, auth.MsgEmailNotRegistered, res.Error)
}

func TestSynchronizer_SubscribersInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	s := newSync(t, storage.NewMemoryArea().Tab())

	var order []string
	s.OnAuthStateChanged(func(*auth.User) { order = append(order, "first") })
	unsub := s.OnAuthStateChanged(func(*auth.User) { order = append(order, "second") })
	s.OnAuthStateChanged(func(*auth.User) { order = append(order, "third") })

	s.Logout(ctx)
	assert.Equal(t, []string{"first", "second", "third"}, order)

	unsub()
	unsub()
	order = nil
	s.Logout(ctx)
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestSynchronizer_LogoutPreservesDurableData(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	s := newSync(t, tab)
	g := garage.New(tab)

	res := s.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.Success)
	uid := res.User.ID

	_, err := g.AddVehicle(ctx, uid, garage.Vehicle{Make: "Porsche", Model: "911"})
	require.NoError(t, err)
	require.NoError(t, g.SaveDraft(ctx, uid, "trip", "Stelvio"))
	require.NoError(t, g.SaveDraft(ctx, "other", "service", "Bremsen"))
	require.NoError(t, tab.Set(ctx, storage.InteractionsKey(uid), "[]"))
	require.NoError(t, tab.Set(ctx, storage.LikeRateKey(uid), "[]"))
	// leftovers of an earlier account in the same context
	require.NoError(t, tab.Set(ctx, storage.ProfileKey("old"), "{}"))
	require.NoError(t, tab.Set(ctx, storage.InteractionsKey("old"), "[]"))
	require.NoError(t, tab.Set(ctx, storage.LikeRateKey("old"), "[]"))

	rec := newRecorder()
	s.OnAuthStateChanged(rec.fn)
	s.Logout(ctx)
	assert.Nil(t, rec.next(t))

	cars, err := g.Vehicles(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, cars, 1)

	for _, k := range []string{
		storage.KeySession,
		storage.ProfileKey(uid), storage.InteractionsKey(uid), storage.LikeRateKey(uid),
		storage.ProfileKey("old"), storage.InteractionsKey("old"), storage.LikeRateKey("old"),
	} {
		_, err := tab.Get(ctx, k)
		assert.ErrorIs(t, err, storage.ErrNotFound, k)
	}
	drafts, err := tab.Keys(ctx, storage.PrefixDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// the account itself survives
	_, err = tab.Get(ctx, storage.KeyUsers)
	assert.NoError(t, err)

	// logging out twice is harmless
	s.Logout(ctx)
	assert.Nil(t, rec.next(t))
}

func TestSynchronizer_CrossTabSessionChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	area := storage.NewMemoryArea()
	tab1, tab2 := area.Tab(), area.Tab()
	s1, s2 := newSync(t, tab1), newSync(t, tab2)

	rec := newRecorder()
	s1.OnAuthStateChanged(rec.fn)
	s1.Start(ctx)
	require.NoError(t, s1.WaitReady(ctx))
	assert.Nil(t, rec.next(t), "initial probe finds nobody")

	res := s2.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.Success)

	// registry and session both change; the last notification wins
	var got *auth.User
	require.Eventually(t, func() bool {
		select {
		case got = <-rec.ch:
		default:
		}
		return got != nil && got.ID == res.User.ID
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, res.User.ID, s1.State().User.ID)

	s2.Logout(ctx)
	require.Eventually(t, func() bool {
		return s1.State().User == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSynchronizer_CrossTabRawSessionWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	area := storage.NewMemoryArea()
	tab1, tab2 := area.Tab(), area.Tab()

	// an account exists already; another tab writes a session directly
	b := auth.NewEmbeddedBackend(tab2, logger.Discard())
	reg, err := b.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, b.Logout(ctx))

	s1 := newSync(t, tab1)
	s1.Start(ctx)
	require.NoError(t, s1.WaitReady(ctx))

	rec := newRecorder()
	s1.OnAuthStateChanged(rec.fn)

	require.NoError(t, tab2.Set(ctx, storage.KeySession, `{"email":"a@b.com"}`))
	u := rec.next(t)
	require.NotNil(t, u)
	assert.Equal(t, reg.ID, u.ID)
}

// slowBackend wraps a backend and delays CurrentUser.
type slowBackend struct {
	auth.Backend
	delay  time.Duration
	logins atomic.Int32
	err    error
}

func (b *slowBackend) CurrentUser(ctx context.Context) (*auth.User, error) {
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Backend.CurrentUser(ctx)
}

func (b *slowBackend) Login(ctx context.Context, c auth.Credentials) (*auth.User, error) {
	b.logins.Add(1)
	time.Sleep(b.delay)
	if b.err != nil {
		return nil, b.err
	}
	return b.Backend.Login(ctx, c)
}

func TestSynchronizer_ReadyByTimeoutBeforeSlowProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tab := storage.NewMemoryArea().Tab()
	emb := auth.NewEmbeddedBackend(tab, logger.Discard())
	_, err := emb.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	slow := &slowBackend{Backend: emb, delay: 300 * time.Millisecond}
	s := auth.NewSynchronizer(slow, tab, auth.WithLogger(logger.Discard()), auth.WithReadyTimeout(20*time.Millisecond))

	assert.Equal(t, auth.GuardPending, auth.Guard(s.State()), "never redirect before ready")

	s.Start(ctx)
	require.NoError(t, s.WaitReady(ctx))
	assert.Equal(t, auth.GuardRedirectLogin, auth.Guard(s.State()))

	// the probe lands later and still publishes the user
	require.Eventually(t, func() bool {
		return auth.Guard(s.State()) == auth.GuardAllow
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSynchronizer_ReadyByProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSync(t, storage.NewMemoryArea().Tab(), auth.WithReadyTimeout(time.Hour))
	s.Start(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, s.WaitReady(waitCtx))
	assert.Equal(t, auth.GuardRedirectLogin, auth.Guard(s.State()))
}

func TestSynchronizer_ConcurrentIdenticalLoginsShareOneCall(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	emb := auth.NewEmbeddedBackend(tab, logger.Discard())
	_, err := emb.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	slow := &slowBackend{Backend: emb, delay: 100 * time.Millisecond}
	s := auth.NewSynchronizer(slow, tab, auth.WithLogger(logger.Discard()))

	var wg sync.WaitGroup
	results := make([]auth.Result, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Login(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.True(t, r.Success)
	}
	assert.Less(t, slow.logins.Load(), int32(5))
}

func TestSynchronizer_UnexpectedErrorsAreNotLeaked(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	slow := &slowBackend{
		Backend: auth.NewEmbeddedBackend(tab, logger.Discard()),
		err:     errors.New("dial tcp 10.0.0.7:5432: connection refused"),
	}
	s := auth.NewSynchronizer(slow, tab, auth.WithLogger(logger.Discard()))

	res := s.Login(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	assert.False(t, res.Success)
	assert.Equal(t, auth.MsgGeneric, res.Error)
}

func TestSynchronizer_CurrentUser(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	s := newSync(t, tab)

	assert.Nil(t, s.CurrentUser(ctx))
	assert.False(t, s.Ready())

	res := s.Register(ctx, auth.Credentials{Email: "a@b.com", Password: "pw"})
	require.True(t, res.Success)

	u := s.CurrentUser(ctx)
	require.NotNil(t, u)
	assert.Equal(t, res.User.ID, u.ID)

	var cached auth.User
	require.NoError(t, storage.GetJSON(ctx, tab, storage.ProfileKey(u.ID), &cached))
	assert.Equal(t, u.Email, cached.Email)
}

func TestGuard(t *testing.T) {
	u := &auth.User{ID: "u1"}
	assert.Equal(t, auth.GuardPending, auth.Guard(auth.State{}))
	assert.Equal(t, auth.GuardRedirectLogin, auth.Guard(auth.State{Ready: true}))
	assert.Equal(t, auth.GuardAllow, auth.Guard(auth.State{User: u, Ready: true}))
	assert.Equal(t, "redirect-login", auth.GuardRedirectLogin.String())
}

func TestReadiness(t *testing.T) {
	r := auth.NewReadiness()
	assert.False(t, r.Ready())
	assert.True(t, r.Mark("probe"))
	assert.False(t, r.Mark("timeout"))
	assert.True(t, r.Ready())
	assert.Equal(t, "probe", r.Reason())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, auth.NewReadiness().Wait(ctx), context.Canceled)
}

func TestNotifier_UnsubscribeDuringNotify(t *testing.T) {
	var n auth.Notifier[int]
	var got []int
	var unsub func()
	unsub = n.Subscribe(func(v int) {
		got = append(got, v)
		unsub()
	})
	n.Notify(1)
	n.Notify(2)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, 0, n.Len())
}

func TestSynchronizer_ConfirmWithoutConfirmingBackend(t *testing.T) {
	s := newSync(t, storage.NewMemoryArea().Tab())

	res := s.Confirm(context.Background(), "any")
	assert.False(t, res.Success)
	assert.Equal(t, auth.MsgNoConfirmation, res.Error)
}
