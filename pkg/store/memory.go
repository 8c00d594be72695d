package store

import (
	"context"
	"sort"
	"sync"

	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
)

// MemoryStore is an in-process EntityStore used in tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[string]*entity.Entity
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[string]*entity.Entity),
	}
}

func memKey(partitionKey, rowKey string) string {
	return partitionKey + "\x00" + rowKey
}

// CreateTableIfAbsent is a no-op for the in-memory store.
func (s *MemoryStore) CreateTableIfAbsent(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) GetEntity(ctx context.Context, partitionKey, rowKey string) (*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[memKey(partitionKey, rowKey)]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"entity %s/%s not found", partitionKey, rowKey)
	}
	return cloneEntity(e), nil
}

func (s *MemoryStore) UpsertEntity(ctx context.Context, e *entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[memKey(e.PartitionKey, e.RowKey)] = cloneEntity(e)
	return nil
}

func (s *MemoryStore) ListEntities(ctx context.Context, partitionKey string) ([]*entity.Entity, error) {
	return s.QueryEntities(ctx, partitionKey, nil)
}

func (s *MemoryStore) QueryEntities(ctx context.Context, partitionKey string, keep func(*entity.Entity) bool) ([]*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.Entity
	for _, e := range s.entities {
		if e.PartitionKey != partitionKey {
			continue
		}
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, cloneEntity(e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RowKey < out[j].RowKey
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneEntity(e *entity.Entity) *entity.Entity {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &entity.Entity{
		PartitionKey: e.PartitionKey,
		RowKey:       e.RowKey,
		Attributes:   attrs,
	}
}
