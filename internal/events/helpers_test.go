package events

import (
	"context"
	"errors"

	"github.com/roach88/deltasink/internal/ir"
)

// rowRecorder collects written rows and can fail on a chosen call.
type rowRecorder struct {
	rows   []ir.Row
	failAt int
	err    error
}

func (r *rowRecorder) Write(_ context.Context, row ir.Row) error {
	if r.err != nil && len(r.rows)+1 == r.failAt {
		return r.err
	}
	r.rows = append(r.rows, row)
	return nil
}

var errWrite = errors.New("write failed")

// ackRecorder records how deliveries were settled.
type ackRecorder struct {
	ack      int
	nack     int
	requeue  bool
	multiple bool
	tag      uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.ack++
	a.tag, a.multiple = tag, multiple
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nack++
	a.tag, a.multiple, a.requeue = tag, multiple, requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return nil }
