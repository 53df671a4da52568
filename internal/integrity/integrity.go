// Package integrity models the proctoring hooks of an active attempt as a
// scoped resource: acquired when a session goes active, released on any exit
// transition. A released watcher drops reports, so handlers can never leak
// across quiz instances.
package integrity

import "sync"

// Kind identifies the client-side event that violated attempt integrity.
type Kind string

const (
	// KindVisibilityHidden fires when the quiz page loses visibility (tab
	// switch, app backgrounded).
	KindVisibilityHidden Kind = "visibility-hidden"
	// KindFullscreenExit fires when the student leaves fullscreen.
	KindFullscreenExit Kind = "fullscreen-exit"
)

func (k Kind) Valid() bool {
	return k == KindVisibilityHidden || k == KindFullscreenExit
}

// Watcher forwards violation reports to its handler while held. Acquire and
// Release bound the window in which reports are honored.
type Watcher struct {
	mu     sync.Mutex
	held   bool
	handle func(Kind)
}

// Acquire returns a watcher forwarding reports to handle.
func Acquire(handle func(Kind)) *Watcher {
	return &Watcher{held: true, handle: handle}
}

// Report forwards a violation to the handler. It returns false when the
// watcher has been released and the report was dropped.
func (w *Watcher) Report(k Kind) bool {
	w.mu.Lock()
	held := w.held
	w.mu.Unlock()

	if !held {
		return false
	}

	w.handle(k)
	return true
}

// Release stops forwarding. Safe to call more than once.
func (w *Watcher) Release() {
	w.mu.Lock()
	w.held = false
	w.mu.Unlock()
}
