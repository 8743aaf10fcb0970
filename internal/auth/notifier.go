package auth

import "sync"

// Session is the authenticated-user handle handed to subscribers.
type Session struct {
	UserID        string
	Email         string
	EmailVerified bool
}

// Notifier broadcasts authentication state transitions. Subscribers get the
// session and whether the user is now signed in; the attendance manager uses
// the signed-in event to build and load the teacher's ledger.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Session, bool)
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Session, bool))}
}

// Subscribe registers a callback and returns its unsubscribe handle.
func (n *Notifier) Subscribe(fn func(s Session, signedIn bool)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// SignedIn announces a successful authentication.
func (n *Notifier) SignedIn(s Session) { n.publish(s, true) }

// SignedOut announces the end of a session.
func (n *Notifier) SignedOut(s Session) { n.publish(s, false) }

func (n *Notifier) publish(s Session, signedIn bool) {
	n.mu.Lock()
	fns := make([]func(Session, bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(s, signedIn)
	}
}
