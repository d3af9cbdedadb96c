package service

import "sync"

// LockState is the inspectable state of one job key's run lock.
type LockState string

const (
	LockIdle    LockState = "idle"
	LockRunning LockState = "running"
)

// RunLock guarantees at most one in-flight run per job key. It is the
// one shared mutable resource in the system: every entry point (the
// scheduled tick, a manual trigger and run-once) acquires it the same
// way. The state is an explicit object rather than a bare flag so it is
// inspectable and multiple job keys can coexist.
type RunLock struct {
	mu     sync.Mutex
	states map[string]*lockState
}

type lockState struct {
	running bool
	queued  bool
}

// NewRunLock creates an empty run lock.
func NewRunLock() *RunLock {
	return &RunLock{states: make(map[string]*lockState)}
}

func (l *RunLock) state(key string) *lockState {
	st, ok := l.states[key]
	if !ok {
		st = &lockState{}
		l.states[key] = st
	}
	return st
}

// TryAcquire attempts to take the lock for key. It never blocks.
func (l *RunLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state(key)
	if st.running {
		return false
	}
	st.running = true
	return true
}

// MarkQueued flags that a tick fired while key was running and should be
// re-fired immediately on release. No-op when the key is idle.
func (l *RunLock) MarkQueued(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state(key)
	if st.running {
		st.queued = true
	}
}

// Release frees the lock for key and reports whether a queued tick is
// pending. The queued flag is consumed.
func (l *RunLock) Release(key string) (queued bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.state(key)
	st.running = false
	queued = st.queued
	st.queued = false
	return queued
}

// State returns the current state for key.
func (l *RunLock) State(key string) LockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.states[key]; ok && st.running {
		return LockRunning
	}
	return LockIdle
}
