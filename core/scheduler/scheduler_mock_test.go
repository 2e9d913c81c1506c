package scheduler_test

import (
	"context"
	"sync"

	"github.com/dmitrymomot/certwatch/core/certstore"
)

type mockAcquirer struct {
	mu       sync.Mutex
	material *certstore.Material
	err      error
	calls    int
}

func (m *mockAcquirer) Obtain(_ context.Context, _ string) (*certstore.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.material, nil
}

func (m *mockAcquirer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockProxy struct {
	mu        sync.Mutex
	applied   [][]byte
	reloads   int
	applyErr  error
	reloadErr error
}

func (m *mockProxy) Apply(_ context.Context, rendered []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, append([]byte(nil), rendered...))
	return nil
}

func (m *mockProxy) Reload(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reloadErr != nil {
		return m.reloadErr
	}
	m.reloads++
	return nil
}

func (m *mockProxy) applyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func (m *mockProxy) reloadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

func (m *mockProxy) lastApplied() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return nil
	}
	return m.applied[len(m.applied)-1]
}
