package codec

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNonTopLevelFunction indicates a function value nested inside an
	// array or object, where only data may appear.
	ErrNonTopLevelFunction = errors.New("function value is only allowed as a top-level prop")

	// ErrUnsupportedValue indicates a value outside the serializable
	// domain (struct, channel, cyclic reference, ...).
	ErrUnsupportedValue = errors.New("value outside serializable domain")

	// ErrUnknownWireTag indicates a wire node with an unrecognized tag.
	ErrUnknownWireTag = errors.New("unknown wire tag")
)

// Registrar issues handles for top-level function props. Implemented by
// the call registry; declared here so encoding does not depend on it.
type Registrar interface {
	Register(fn NativeFunc) Handle
}

// Encode converts a value from the serializable domain into its wire
// form. Function values fail with ErrNonTopLevelFunction: they may only
// cross the boundary as top-level prop entries via EncodeSnapshot.
func Encode(v any) (WireValue, error) {
	e := encoder{}
	return e.encode(v)
}

// EncodeSnapshot converts a prop map into a wire snapshot. Top-level
// NativeFunc values are registered with reg and replaced by handles;
// everything else must stay within the plain serializable domain.
func EncodeSnapshot(props map[string]any, reg Registrar) (Snapshot, error) {
	snap := make(Snapshot, len(props))
	for key, v := range props {
		if fn, ok := v.(NativeFunc); ok {
			snap[key] = WireValue{Tag: TagFunc, Handle: reg.Register(fn)}
			continue
		}
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			return nil, fmt.Errorf("prop %q: %w: function props must be NativeFunc", key, ErrUnsupportedValue)
		}
		w, err := Encode(v)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", key, err)
		}
		snap[key] = w
	}
	return snap, nil
}

// EncodeArgs converts an argument list for a call envelope. Functions are
// never valid as arguments.
func EncodeArgs(args []any) ([]WireValue, error) {
	out := make([]WireValue, len(args))
	for i, a := range args {
		w, err := Encode(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// Decode converts a wire value back into its native form. Numbers decode
// as float64, objects as map[string]any, function nodes as their Handle.
func Decode(w WireValue) (any, error) {
	switch w.Tag {
	case TagNull:
		return nil, nil
	case TagUndefined:
		return Undefined, nil
	case TagBool:
		return w.Bool, nil
	case TagNumber:
		return w.Num, nil
	case TagString:
		return w.Str, nil
	case TagArray:
		items := make([]any, len(w.Items))
		for i, item := range w.Items {
			v, err := Decode(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case TagObject:
		fields := make(map[string]any, len(w.Fields))
		for k, f := range w.Fields {
			v, err := Decode(f)
			if err != nil {
				return nil, err
			}
			fields[k] = v
		}
		return fields, nil
	case TagFunc:
		return w.Handle, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWireTag, w.Tag)
	}
}

// DecodeArgs converts a wire argument list back into native values.
func DecodeArgs(ws []WireValue) ([]any, error) {
	args := make([]any, len(ws))
	for i, w := range ws {
		v, err := Decode(w)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// encoder tracks visited containers to detect cycles.
type encoder struct {
	seen map[uintptr]struct{}
}

func (e *encoder) encode(v any) (WireValue, error) {
	if v == nil {
		return WireValue{Tag: TagNull}, nil
	}
	if IsUndefined(v) {
		return WireValue{Tag: TagUndefined}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return WireValue{Tag: TagBool, Bool: rv.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return WireValue{Tag: TagNumber, Num: float64(rv.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return WireValue{Tag: TagNumber, Num: float64(rv.Uint())}, nil
	case reflect.Float32, reflect.Float64:
		return WireValue{Tag: TagNumber, Num: rv.Float()}, nil
	case reflect.String:
		return WireValue{Tag: TagString, Str: rv.String()}, nil
	case reflect.Func:
		return WireValue{}, ErrNonTopLevelFunction
	case reflect.Slice, reflect.Array:
		return e.encodeArray(rv)
	case reflect.Map:
		return e.encodeObject(rv)
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return WireValue{Tag: TagNull}, nil
		}
		return e.encode(rv.Elem().Interface())
	default:
		return WireValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func (e *encoder) encodeArray(rv reflect.Value) (WireValue, error) {
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		if err := e.enter(rv.Pointer()); err != nil {
			return WireValue{}, err
		}
		defer e.leave(rv.Pointer())
	}

	items := make([]WireValue, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		w, err := e.encode(rv.Index(i).Interface())
		if err != nil {
			return WireValue{}, fmt.Errorf("index %d: %w", i, err)
		}
		items[i] = w
	}
	return WireValue{Tag: TagArray, Items: items}, nil
}

func (e *encoder) encodeObject(rv reflect.Value) (WireValue, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return WireValue{}, fmt.Errorf("%w: map keyed by %s", ErrUnsupportedValue, rv.Type().Key())
	}
	if !rv.IsNil() {
		if err := e.enter(rv.Pointer()); err != nil {
			return WireValue{}, err
		}
		defer e.leave(rv.Pointer())
	}

	fields := make(map[string]WireValue, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		w, err := e.encode(iter.Value().Interface())
		if err != nil {
			return WireValue{}, fmt.Errorf("key %q: %w", key, err)
		}
		fields[key] = w
	}
	return WireValue{Tag: TagObject, Fields: fields}, nil
}

func (e *encoder) enter(ptr uintptr) error {
	if e.seen == nil {
		e.seen = make(map[uintptr]struct{})
	}
	if _, ok := e.seen[ptr]; ok {
		return fmt.Errorf("%w: cyclic reference", ErrUnsupportedValue)
	}
	e.seen[ptr] = struct{}{}
	return nil
}

func (e *encoder) leave(ptr uintptr) {
	delete(e.seen, ptr)
}
