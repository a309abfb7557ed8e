// Package session tracks the current user and notifies subscribers when it
// changes.
package session

import "sync"

// Change describes a switch of the current user. A zero user id means no
// user is selected.
type Change struct {
	Previous   int64
	Current    int64
	Generation uint64
}

// HasUser reports whether the change selected a user.
func (c Change) HasUser() bool {
	return c.Current > 0
}

// Session is the process-wide current-user context. It starts with no user
// unless constructed with one.
type Session struct {
	mu      sync.Mutex
	current int64
	gen     uint64
	nextSub uint64
	subs    []subscriber

	// deliver serialises notification so subscribers observe changes in
	// the order they were made.
	deliver sync.Mutex
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// New returns a Session with no current user.
func New() *Session {
	return &Session{}
}

// Current returns the current user id and whether one is selected.
func (s *Session) Current() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current > 0
}

// Generation increases on every change.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Set makes id the current user; id <= 0 clears it. Subscribers run
// synchronously, in subscription order, before Set returns. Setting the
// current value again is a no-op. Subscribers must not call Set or Clear.
func (s *Session) Set(id int64) (Change, bool) {
	if id < 0 {
		id = 0
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if id == s.current {
		s.mu.Unlock()
		return Change{}, false
	}
	s.gen++
	change := Change{Previous: s.current, Current: id, Generation: s.gen}
	s.current = id
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(change)
	}
	return change, true
}

// Clear deselects the current user.
func (s *Session) Clear() (Change, bool) {
	return s.Set(0)
}

// Subscribe registers fn for future changes and returns a function that
// removes it.
func (s *Session) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}
