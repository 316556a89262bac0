package transport

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/hybridui/dombridge/internal/codec"
	"github.com/hybridui/dombridge/internal/registry"
)

// Kind discriminates envelope payloads.
type Kind string

const (
	KindPropUpdate   Kind = "prop-update"
	KindCallRequest  Kind = "call-request"
	KindCallResponse Kind = "call-response"
	KindLifecycle    Kind = "lifecycle-event"
)

// Phase is a lifecycle-event payload.
type Phase string

const (
	PhaseMounted   Phase = "mounted"
	PhaseUnmounted Phase = "unmounted"
)

// Envelope is the discriminated message frame crossing the bridge.
// Exactly the fields required by Kind are populated.
type Envelope struct {
	Kind          Kind               `json:"kind"`
	InstanceID    string             `json:"instance_id,omitempty"`
	Snapshot      codec.Snapshot     `json:"snapshot,omitempty"`
	Handle        codec.Handle       `json:"handle,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Args          []codec.WireValue  `json:"args,omitempty"`
	Result        *codec.WireValue   `json:"result,omitempty"`
	Error         *WireError         `json:"error,omitempty"`
	Phase         Phase              `json:"phase,omitempty"`
}

// WireError is the serialized form of an invocation failure carried in a
// call-response.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes recognized on both sides of the bridge.
const (
	CodeHandleReleased          = "handle_released"
	CodeNonSerializableArgument = "non_serializable_argument"
	CodeTimeout                 = "timeout"
	CodeUserFunctionThrew       = "user_function_threw"
	CodeInstanceUnmounted       = "instance_unmounted"
	CodeSerialization           = "serialization"
	CodeInternal                = "internal"
)

func (e *WireError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewWireError serializes an invocation failure into its wire form.
func NewWireError(err error) *WireError {
	code := CodeInternal
	switch {
	case errors.Is(err, registry.ErrHandleReleased):
		code = CodeHandleReleased
	case errors.Is(err, registry.ErrNonSerializableArgument):
		code = CodeNonSerializableArgument
	case errors.Is(err, registry.ErrInvokeTimeout):
		code = CodeTimeout
	case errors.Is(err, registry.ErrUserFunctionThrew):
		code = CodeUserFunctionThrew
	case errors.Is(err, registry.ErrInstanceUnmounted):
		code = CodeInstanceUnmounted
	case errors.Is(err, codec.ErrNonTopLevelFunction),
		errors.Is(err, codec.ErrUnsupportedValue),
		errors.Is(err, codec.ErrUnknownWireTag):
		code = CodeSerialization
	}
	return &WireError{Code: code, Message: err.Error()}
}

// Sentinel maps a wire error back to the native sentinel it was
// serialized from, preserving errors.Is across the boundary.
func (e *WireError) Sentinel() error {
	switch e.Code {
	case CodeHandleReleased:
		return fmt.Errorf("%w: %s", registry.ErrHandleReleased, e.Message)
	case CodeNonSerializableArgument:
		return fmt.Errorf("%w: %s", registry.ErrNonSerializableArgument, e.Message)
	case CodeTimeout:
		return fmt.Errorf("%w: %s", registry.ErrInvokeTimeout, e.Message)
	case CodeUserFunctionThrew:
		return fmt.Errorf("%w: %s", registry.ErrUserFunctionThrew, e.Message)
	case CodeInstanceUnmounted:
		return fmt.Errorf("%w: %s", registry.ErrInstanceUnmounted, e.Message)
	default:
		return e
	}
}

// EncodeFrame frames an envelope for a byte transport.
func EncodeFrame(env Envelope) ([]byte, error) {
	data, err := sonic.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a framed envelope.
func DecodeFrame(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing kind")
	}
	return env, nil
}
