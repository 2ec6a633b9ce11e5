package events

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/roach88/deltasink/internal/ir"
)

// maxLineSize bounds a single JSON line.
const maxLineSize = 4 << 20

// Writer consumes decoded rows in order. *delta.TaskWriter implements it.
type Writer interface {
	Write(ctx context.Context, row ir.Row) error
}

// Reader decodes JSON lines. Blank lines are skipped.
type Reader struct {
	codec   *Codec
	scanner *bufio.Scanner
	line    int
}

// NewReader reads events from r.
func NewReader(r io.Reader, codec *Codec) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{codec: codec, scanner: scanner}
}

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() (ir.Row, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row, err := r.codec.Decode(line)
		if err != nil {
			return ir.Row{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return row, nil
	}
	if err := r.scanner.Err(); err != nil {
		return ir.Row{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return ir.Row{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Copy writes every event of r to w and returns how many were written.
// It stops at the first decode or write error.
func Copy(ctx context.Context, w Writer, r *Reader) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		row, err := r.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := w.Write(ctx, row); err != nil {
			return n, fmt.Errorf("line %d: %w", r.Line(), err)
		}
		n++
	}
}
