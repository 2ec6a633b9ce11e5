package events

import (
	stdjson "encoding/json"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/deltasink/internal/ir"
)

// json decodes numbers as json.Number so 64-bit ids survive intact.
var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// wireEvent is the JSON shape of one event.
type wireEvent struct {
	Op  jsoniter.RawMessage `json:"op"`
	Row map[string]any      `json:"row"`
}

// Codec converts between JSON events and positional rows of one schema.
type Codec struct {
	schema *ir.Schema
}

// NewCodec returns a codec for rows of schema.
func NewCodec(schema *ir.Schema) *Codec {
	return &Codec{schema: schema}
}

// Schema returns the schema rows are decoded against.
func (c *Codec) Schema() *ir.Schema {
	return c.schema
}

// Decode parses one event. Columns are placed by the schema's
// name→position mapping; a column the schema does not know is an error.
func (c *Codec) Decode(data []byte) (ir.Row, error) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ir.Row{}, fmt.Errorf("decode event: %w", err)
	}

	var op any
	if len(ev.Op) > 0 {
		if err := json.Unmarshal(ev.Op, &op); err != nil {
			return ir.Row{}, fmt.Errorf("decode event: op: %w", err)
		}
	}
	return c.DecodeEvent(op, ev.Row)
}

// DecodeEvent builds a row from an already parsed op and column map, as
// produced by a JSON or YAML decoder.
func (c *Codec) DecodeEvent(op any, row map[string]any) (ir.Row, error) {
	kind, err := decodeOp(op)
	if err != nil {
		return ir.Row{}, fmt.Errorf("decode event: %w", err)
	}
	if row == nil {
		return ir.Row{}, fmt.Errorf("decode event: row is required")
	}

	values := make([]ir.Value, c.schema.Len())
	for i := range values {
		values[i] = ir.Null{}
	}
	for name, raw := range row {
		f, ok := c.schema.FindFieldByName(name)
		if !ok {
			return ir.Row{}, fmt.Errorf("decode event: column %q not in %s", name, c.schema)
		}
		v, err := ir.ValueOf(raw)
		if err != nil {
			return ir.Row{}, fmt.Errorf("decode event: column %q: %w", name, err)
		}
		pos, _ := c.schema.Position(f.ID)
		values[pos] = v
	}

	return ir.NewRow(kind, values...), nil
}

// Encode renders row as an event with the short op name. Rows with an
// unknown kind are encoded with the raw integer.
func (c *Codec) Encode(row ir.Row) ([]byte, error) {
	if row.Len() != c.schema.Len() {
		return nil, fmt.Errorf("encode event: row has %d values, schema has %d fields", row.Len(), c.schema.Len())
	}

	obj := make(map[string]any, row.Len())
	for i, v := range row.Values {
		obj[c.schema.FieldAt(i).Name] = v
	}

	var op any = row.Kind.ShortString()
	if row.Kind < ir.Insert || row.Kind > ir.Delete {
		op = int(row.Kind)
	}

	data, err := ir.MarshalCanonical(map[string]any{"op": op, "row": obj})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

func decodeOp(op any) (ir.ChangeKind, error) {
	var n int64
	switch val := op.(type) {
	case nil:
		return 0, fmt.Errorf("op is required")
	case string:
		return ir.ParseChangeKind(val)
	case stdjson.Number:
		i, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("op: %s is not a valid kind number", val)
		}
		n = i
	case int:
		n = int64(val)
	case int64:
		n = val
	default:
		return 0, fmt.Errorf("op: must be a string or integer, got %v", op)
	}

	// Out of range numbers still name no kind; clamp them so the dispatcher
	// rejects them like any other unknown kind.
	n = min(max(n, math.MinInt8), math.MaxInt8)
	return ir.ChangeKind(n), nil
}
