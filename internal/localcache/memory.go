package localcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a map-backed Backend. It never fails.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]Record
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Record)}
}

func (m *Memory) Upsert(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = Record{ID: key, Data: string(blob), UpdatedAt: time.Now()}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(rec.Data), nil
}

func (m *Memory) SelectAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]Record, 0, len(m.rows))
	for _, r := range m.rows {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}
