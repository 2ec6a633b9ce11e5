package delta

import (
	"fmt"
	"log/slog"

	"github.com/roach88/deltasink/internal/ir"
)

// PartitionRouter owns the mapping from partition key to writer.
//
// Writers live in an arena slice in creation order; the index maps each key
// to its slot. A slot is never reused or shared, so the same key always
// yields the same writer and distinct keys never share one.
//
// Not safe for concurrent use.
type PartitionRouter struct {
	computer  PartitionKeyComputer
	newWriter func(ir.PartitionKey) *EqualityDeltaWriter
	logger    *slog.Logger

	index   map[ir.PartitionKey]int
	writers []*EqualityDeltaWriter
}

// NewPartitionRouter creates a router that builds writers with newWriter.
func NewPartitionRouter(
	computer PartitionKeyComputer,
	newWriter func(ir.PartitionKey) *EqualityDeltaWriter,
	logger *slog.Logger,
) *PartitionRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PartitionRouter{
		computer:  computer,
		newWriter: newWriter,
		logger:    logger,
		index:     make(map[ir.PartitionKey]int),
	}
}

// Route returns the writer for row's partition, creating and registering
// it on the first row of a previously unseen key.
func (r *PartitionRouter) Route(row ir.Row) (*EqualityDeltaWriter, error) {
	key, err := r.computer.ComputeKey(row)
	if err != nil {
		return nil, fmt.Errorf("compute partition key: %w", err)
	}

	if slot, ok := r.index[key]; ok {
		return r.writers[slot], nil
	}

	w := r.newWriter(key)
	r.index[key] = len(r.writers)
	r.writers = append(r.writers, w)
	r.logger.Debug("partition writer created",
		"partition", key.String(),
		"writers", len(r.writers))
	return w, nil
}

// Lookup returns the writer registered for key, if any.
func (r *PartitionRouter) Lookup(key ir.PartitionKey) (*EqualityDeltaWriter, bool) {
	slot, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.writers[slot], true
}

// Len returns the number of live writers.
func (r *PartitionRouter) Len() int {
	return len(r.writers)
}

// Partitions returns the registered keys in creation order.
func (r *PartitionRouter) Partitions() []ir.PartitionKey {
	keys := make([]ir.PartitionKey, len(r.writers))
	for i, w := range r.writers {
		keys[i] = w.Partition()
	}
	return keys
}

// Writers returns the writers in creation order.
func (r *PartitionRouter) Writers() []*EqualityDeltaWriter {
	out := make([]*EqualityDeltaWriter, len(r.writers))
	copy(out, r.writers)
	return out
}
