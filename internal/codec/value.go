package codec

import "context"

// Handle is an opaque reference to a native function registered with a
// call registry. Handles are only meaningful within the lifetime of the
// registry that issued them.
type Handle string

// NativeFunc is a native action exposed to an isolated runtime. Arguments
// and return value must stay within the serializable domain.
type NativeFunc func(ctx context.Context, args []any) (any, error)

// undefined is the JS-style undefined sentinel, distinct from nil.
type undefined struct{}

// Undefined represents an explicitly undefined value.
var Undefined = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}
