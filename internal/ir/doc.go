// Package ir provides the value, schema, and row types shared by the delta
// write path.
//
// All other internal packages import ir; ir imports nothing internal. This
// keeps the row model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) or String for decimals, so
//     that partition keys and stored records are byte-for-byte deterministic
//   - Field ids are stable identifiers, never positions: use Schema.Position
//     to resolve an id to a row slot
//   - Rows are positional and carry their ChangeKind
//   - All serialized records use canonical JSON (see MarshalCanonical)
package ir
