package codec

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Wire tags discriminate node types in the encoded tree.
const (
	TagNull      = "null"
	TagUndefined = "undef"
	TagBool      = "bool"
	TagNumber    = "num"
	TagString    = "str"
	TagArray     = "arr"
	TagObject    = "obj"
	TagFunc      = "fn"
)

// WireValue is one node of the encoded value tree. Exactly the field
// matching Tag is populated.
type WireValue struct {
	Tag    string               `json:"t"`
	Bool   bool                 `json:"b,omitempty"`
	Num    float64              `json:"n,omitempty"`
	Str    string               `json:"s,omitempty"`
	Items  []WireValue          `json:"i,omitempty"`
	Fields map[string]WireValue `json:"f,omitempty"`
	Handle Handle               `json:"h,omitempty"`
}

// Snapshot is an encoded prop tree keyed by prop name.
type Snapshot map[string]WireValue

// Marshal frames a wire value as JSON.
func Marshal(w WireValue) ([]byte, error) {
	data, err := sonic.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal wire value: %w", err)
	}
	return data, nil
}

// Unmarshal parses a JSON-framed wire value.
func Unmarshal(data []byte) (WireValue, error) {
	var w WireValue
	if err := sonic.Unmarshal(data, &w); err != nil {
		return WireValue{}, fmt.Errorf("unmarshal wire value: %w", err)
	}
	return w, nil
}
