// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]map[string]Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]map[string]Record)}
}

func (m *MemoryBackend) Get(ctx context.Context, table, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tables[table][key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(rec), nil
}

func (m *MemoryBackend) Insert(ctx context.Context, table, key string, data []byte) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		t = make(map[string]Record)
		m.tables[table] = t
	}
	if _, exists := t[key]; exists {
		return Record{}, ErrConflict
	}
	rec := Record{Key: key, Version: 1, Data: slices.Clone(data)}
	t[key] = rec
	return clone(rec), nil
}

func (m *MemoryBackend) Swap(ctx context.Context, table, key string, version int64, data []byte) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.tables[table][key]
	if !ok {
		return Record{}, ErrNotFound
	}
	if cur.Version != version {
		return Record{}, ErrConflict
	}
	rec := Record{Key: key, Version: version + 1, Data: slices.Clone(data)}
	m.tables[table][key] = rec
	return clone(rec), nil
}

func (m *MemoryBackend) Find(ctx context.Context, table string, where Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.tables[table] {
		if matches(rec.Data, where) {
			out = append(out, clone(rec))
		}
	}
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Len returns the number of records in a table.
func (m *MemoryBackend) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *MemoryBackend) Close() error { return nil }

func clone(r Record) Record {
	r.Data = slices.Clone(r.Data)
	return r
}
