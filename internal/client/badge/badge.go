// Package badge keeps the OS-level unread counter. The counter is only ever
// moved by signed deltas; Set exists for initialization.
package badge

import "sync"

// Counter is adjusted by deltas, never recomputed from scratch.
type Counter interface {
	Add(delta int) int
	Count() int
}

// Memory is an in-process Counter. OnChange, when set, receives every new
// value so a platform integration can mirror it.
type Memory struct {
	mu       sync.Mutex
	n        int
	OnChange func(n int)
}

func NewMemory(initial int) *Memory {
	m := &Memory{}
	m.Set(initial)
	return m
}

// Set overwrites the counter. Negative values are clamped to zero.
func (m *Memory) Set(n int) {
	m.mu.Lock()
	m.n = max(n, 0)
	cb, v := m.OnChange, m.n
	m.mu.Unlock()

	if cb != nil {
		cb(v)
	}
}

// Add moves the counter by delta and returns the new value. The counter
// never goes below zero.
func (m *Memory) Add(delta int) int {
	m.mu.Lock()
	m.n = max(m.n+delta, 0)
	cb, v := m.OnChange, m.n
	m.mu.Unlock()

	if cb != nil && delta != 0 {
		cb(v)
	}
	return v
}

func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}
