package persist

import (
	"context"
	"sync"
)

// Memory keeps the document in process. It never survives a restart; it
// exists for tests and for running the daemon without touching disk.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	writes  [][]byte
	failErr error
	onWrite func()
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Name returns the backend identifier.
func (m *Memory) Name() string { return DriverMemory }

// Read returns a copy of the last written document.
func (m *Memory) Read(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

// Write stores a copy of data.
func (m *Memory) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	hook := m.onWrite
	if m.failErr != nil {
		err := m.failErr
		m.mu.Unlock()
		return err
	}
	cp := append([]byte(nil), data...)
	m.data = cp
	m.writes = append(m.writes, cp)
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// Seed sets the stored document without counting a write.
func (m *Memory) Seed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// FailWith makes every subsequent Read and Write return err. Pass nil to heal.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// OnWrite registers fn to run after each successful write.
func (m *Memory) OnWrite(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

// Writes returns every document written so far, oldest first.
func (m *Memory) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}

// WriteCount returns how many writes succeeded.
func (m *Memory) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
