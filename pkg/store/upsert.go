package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/metrics"
)

// Result reports what a batch write did.
type Result struct {
	New     int
	Updated int
	Failed  int
}

// Writer pushes mapped entities into an EntityStore. One bad record
// never fails the batch; failures are counted and logged.
type Writer struct {
	store  EntityStore
	logger *zap.Logger
}

// NewWriter wraps an EntityStore with batch semantics.
func NewWriter(store EntityStore, logger *zap.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// StoreBatch upserts every entity. The pre-write existence check only
// decides whether the record counts as new or updated; the write itself
// is always an unconditional upsert.
func (w *Writer) StoreBatch(ctx context.Context, entities []*entity.Entity) Result {
	var res Result
	for _, e := range entities {
		exists, err := w.exists(ctx, e)
		if err != nil {
			w.recordFailure(e, err, &res)
			continue
		}

		if err := w.store.UpsertEntity(ctx, e); err != nil {
			w.recordFailure(e, errors.Wrap(err, errors.ErrorTypeRecord, "upsert failed"), &res)
			continue
		}

		if exists {
			res.Updated++
			metrics.RecordsStored.WithLabelValues("updated").Inc()
		} else {
			res.New++
			metrics.RecordsStored.WithLabelValues("new").Inc()
		}
	}

	w.logger.Info("stored batch",
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed))
	return res
}

func (w *Writer) exists(ctx context.Context, e *entity.Entity) (bool, error) {
	_, err := w.store.GetEntity(ctx, e.PartitionKey, e.RowKey)
	if err == nil {
		return true, nil
	}
	if errors.IsType(err, errors.ErrorTypeNotFound) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrorTypeRecord, "existence check failed")
}

func (w *Writer) recordFailure(e *entity.Entity, err error, res *Result) {
	res.Failed++
	metrics.RecordsStored.WithLabelValues("failed").Inc()
	w.logger.Warn("failed to store record",
		zap.String("row_key", e.RowKey),
		zap.Error(err))
}
