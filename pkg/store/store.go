// Package store persists entities keyed by partition and row key.
package store

import (
	"context"

	"github.com/apiobserve/collector/pkg/entity"
)

// EntityStore is a keyed entity table. Implementations must treat
// UpsertEntity as create-or-replace on (partition key, row key).
type EntityStore interface {
	// CreateTableIfAbsent prepares the backing table. Safe to call on
	// every run.
	CreateTableIfAbsent(ctx context.Context) error

	// GetEntity returns the stored entity or an ErrorTypeNotFound error.
	GetEntity(ctx context.Context, partitionKey, rowKey string) (*entity.Entity, error)

	// UpsertEntity writes the entity, replacing any existing row with
	// the same keys.
	UpsertEntity(ctx context.Context, e *entity.Entity) error

	// ListEntities returns all entities in a partition.
	ListEntities(ctx context.Context, partitionKey string) ([]*entity.Entity, error)

	// QueryEntities returns the partition's entities that pass the
	// filter.
	QueryEntities(ctx context.Context, partitionKey string, keep func(*entity.Entity) bool) ([]*entity.Entity, error)

	// Close releases the underlying resources.
	Close() error
}
