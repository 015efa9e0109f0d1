package relay

import (
	"context"
	"sync"
)

// aborts tracks the cancel function of the in-flight exchange of each session.
type aborts struct {
	mu       sync.Mutex
	inflight map[string]*inflight
}

type inflight struct {
	cancel context.CancelFunc
}

func newAborts() *aborts {
	return &aborts{inflight: make(map[string]*inflight)}
}

// register makes cancel the abort target for session. A newer exchange of the
// same session replaces an older one. The returned release must be called when
// the exchange ends.
func (a *aborts) register(session string, cancel context.CancelFunc) (release func()) {
	entry := &inflight{cancel: cancel}

	a.mu.Lock()
	a.inflight[session] = entry
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.inflight[session] == entry {
			delete(a.inflight, session)
		}
	}
}

// abort cancels the in-flight exchange of session and reports whether there
// was one.
func (a *aborts) abort(session string) bool {
	a.mu.Lock()
	entry, ok := a.inflight[session]
	if ok {
		delete(a.inflight, session)
	}
	a.mu.Unlock()

	if ok {
		entry.cancel()
	}
	return ok
}
