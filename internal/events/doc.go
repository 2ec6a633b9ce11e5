// Package events decodes change events and feeds them to a writer.
//
// An event is one JSON object:
//
//	{"op": "-U", "row": {"k": 5, "v1": "a", "v2": "b"}}
//
// op is a wire name (+I, -U, +U, -D or INSERT, UPDATE_BEFORE, UPDATE_AFTER,
// DELETE) or a raw integer kind. Unknown names fail decoding; out-of-range
// integers decode and are left to the writer to reject. row maps column
// names to values; absent columns are null.
//
// Events arrive either as JSON lines (Reader) or as AMQP deliveries
// (AMQPSource). Both hand rows to a Writer in arrival order.
package events
