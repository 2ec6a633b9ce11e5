package delta

import "github.com/roach88/deltasink/internal/ir"

// Action is what a writer does with a classified row.
type Action int

const (
	// Append writes the full row to the partition's data output.
	Append Action = iota + 1
	// Tombstone records a delete for the row in the partition's delete output.
	Tombstone
)

func (a Action) String() string {
	switch a {
	case Append:
		return "append"
	case Tombstone:
		return "tombstone"
	default:
		return "unknown"
	}
}

// Classify maps a change kind onto an Action.
//
// Insert and UpdateAfter append; Delete and UpdateBefore tombstone. Any
// other value yields UNSUPPORTED_CHANGE_KIND and must reject the event
// before it reaches a writer.
func Classify(kind ir.ChangeKind) (Action, error) {
	switch kind {
	case ir.Insert, ir.UpdateAfter:
		return Append, nil
	case ir.Delete, ir.UpdateBefore:
		return Tombstone, nil
	default:
		return 0, NewUnsupportedChangeKindError(kind)
	}
}
