package mailbox

import "github.com/joeycumines/go-actorvm/coreerr"

// MaxMessageDepth and MaxMessageFanout are the compile-time bounds spec
// §4.2 requires on message values ("the wire format in §6 imposes
// stricter limits" — these are the in-process ceiling ipcwire's framed
// codec sits under).
const (
	MaxMessageDepth  = 32
	MaxMessageFanout = 4096
)

// Value is the design's message value (spec §4.2): a bounded sum of bool,
// float64 (the single numeric representation, matching the double-only
// wire format ipcwire encodes), string, map[string]Value, []Value, and
// *Address. A nil Value is permitted and carries no payload.
type Value = any

// Validate checks v against the allowed type set and the depth/fanout
// bounds, returning invalid_argument on the first violation.
func Validate(v Value) error { return validateDepth(v, 0) }

func validateDepth(v Value, depth int) error {
	if depth > MaxMessageDepth {
		return coreerr.NewArg(coreerr.InvalidArgument, "depth")
	}
	switch x := v.(type) {
	case nil, bool, float64, string, *Address:
		return nil
	case map[string]Value:
		if len(x) > MaxMessageFanout {
			return coreerr.NewArg(coreerr.InvalidArgument, "fanout")
		}
		for _, e := range x {
			if err := validateDepth(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []Value:
		if len(x) > MaxMessageFanout {
			return coreerr.NewArg(coreerr.InvalidArgument, "fanout")
		}
		for _, e := range x {
			if err := validateDepth(e, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return coreerr.NewArg(coreerr.InvalidArgument, "type")
	}
}
