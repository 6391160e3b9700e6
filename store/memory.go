package store

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/tools"
)

type memoryStore struct {
	docs map[string][]byte
	lock sync.RWMutex
}

// NewMemoryStore returns the SnapshotStore that keeps the snapshot documents in memory
func NewMemoryStore() SnapshotStore {
	return &memoryStore{
		docs: make(map[string][]byte),
	}
}

func (m *memoryStore) Save(_ context.Context, id string, s *tools.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	if s == nil {
		return errors.New("snapshot is required")
	}
	doc, err := s.Marshal()
	if err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.docs[id] = doc
	return nil
}

func (m *memoryStore) Load(_ context.Context, id string) (*tools.Snapshot, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	m.lock.RLock()
	doc, ok := m.docs[id]
	m.lock.RUnlock()

	if !ok {
		return nil, notFound(id)
	}
	return tools.ParseSnapshot(doc)
}

func (m *memoryStore) List(_ context.Context) ([]string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.docs, id)
	return nil
}
