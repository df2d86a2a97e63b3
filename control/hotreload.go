// control/hotreload.go
// Reload listener list shared by config consumers.
// SetSyncReload gives tests deterministic notification.

package control

import "sync"

type reloadHooks struct {
	mu     sync.Mutex
	hooks  []func()
	inline bool
}

func (r *reloadHooks) register(fn func()) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

func (r *reloadHooks) snapshot() ([]func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]func(){}, r.hooks...), r.inline
}

// trigger dispatches all hooks, asynchronously unless sync dispatch is on.
func (r *reloadHooks) trigger() {
	hooks, inline := r.snapshot()
	for _, fn := range hooks {
		if inline {
			fn()
		} else {
			go fn()
		}
	}
}

// SetSyncReload makes reload listeners run on the goroutine calling
// SetConfig, before it returns.
func (cs *ConfigStore) SetSyncReload(on bool) {
	cs.hooks.mu.Lock()
	cs.hooks.inline = on
	cs.hooks.mu.Unlock()
}

// TriggerReload dispatches all listeners without a config change.
func (cs *ConfigStore) TriggerReload() {
	cs.hooks.trigger()
}
