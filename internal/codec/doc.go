/*
Package codec implements the serialization boundary between the native
process and isolated web runtimes.

# Value Domain

Only a constrained domain may cross the bridge:

  - nil and the explicit Undefined sentinel
  - bool, numbers (normalized to float64 on the wire), string
  - arrays and string-keyed objects of the above, recursively
  - NativeFunc values, but only as a top-level prop entry

Functions are never inlined. A top-level function prop is registered with
the owning instance's call registry and replaced by an opaque Handle; the
real function never leaves the native side. A function found nested inside
an array or object value is a contract violation and fails encoding before
anything is sent.

# Wire Format

Values encode to a tagged tree (WireValue) that frames cleanly as JSON.
Decoding is the structural inverse: numbers come back as float64, function
nodes come back as their Handle. Unknown tags fail decoding.

# Errors

ErrNonTopLevelFunction, ErrUnsupportedValue on encode;
ErrUnknownWireTag on decode. Encoding has no side effects except handle
registration performed by EncodeSnapshot.
*/
package codec
