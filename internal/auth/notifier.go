package auth

import "sync"

// Notifier fans a value out to subscribers in registration order.
type Notifier[T any] struct {
	mu   sync.Mutex
	next int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function removing it again. The
// returned function may be called any number of times.
func (n *Notifier[T]) Subscribe(fn func(T)) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs = append(n.subs, subscription[T]{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

// Notify calls every subscriber with v. Subscribers may subscribe or
// unsubscribe from inside the callback; that takes effect from the next
// Notify on.
func (n *Notifier[T]) Notify(v T) {
	n.mu.Lock()
	subs := make([]subscription[T], len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier[T]) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			return
		}
	}
}
