package provider

import (
	"sync"
	"time"
)

// creatingTTL caps how long an id stays protected after Begin: the entry
// is removed when its end function runs or once it is older than
// creatingTTL, whichever comes first. Grounded on
// original_source/provider/scaleway.rs's RECENT_LIST, a 120-second window
// of ids just submitted for creation. Drivers call end when CreateServer
// returns, so the registry covers the CreateServer call only; it does not
// protect the server while it is being configured or before its row is
// inserted into the bridge store.
const creatingTTL = 120 * time.Second

// CreatingRegistry is a short-lived per-driver ledger of ids currently
// mid-creation, consulted by RetainByID before deleting an orphan.
type CreatingRegistry struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

// NewCreatingRegistry returns an empty registry.
func NewCreatingRegistry() *CreatingRegistry {
	return &CreatingRegistry{ids: make(map[string]time.Time)}
}

// Begin marks id as creating and returns a function to call once the
// create_server call finishes (success or failure).
func (r *CreatingRegistry) Begin(id string) (end func()) {
	r.mu.Lock()
	r.ids[id] = time.Now()
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.ids, id)
		r.mu.Unlock()
	}
}

// Contains reports whether id is still within its creating TTL, pruning
// stale entries as it goes.
func (r *CreatingRegistry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.ids {
		if time.Since(t) > creatingTTL {
			delete(r.ids, k)
		}
	}
	_, ok := r.ids[id]
	return ok
}
