package proxy

import (
	"context"

	"github.com/hybridui/dombridge/internal/transport"
)

// Embedder abstracts the embedded web-rendering control. The in-process
// implementation lives in the webruntime package; a remote runtime
// attached through the dev server satisfies the same contract.
type Embedder interface {
	// Start boots the isolated runtime with the module's compiled
	// bundle and the far endpoint of the instance's transport. opts
	// carries the verbatim passthrough options from the reserved
	// "dom" prop.
	Start(ctx context.Context, bundle []byte, opts map[string]any, tr transport.Transport) error

	// Stop releases the runtime. Must be safe to call once after a
	// successful Start.
	Stop() error
}

// DOMProp is the reserved prop name carrying embedder passthrough
// configuration. Recognized options are forwarded verbatim to the
// Embedder and are not part of the runtime snapshot.
const DOMProp = "dom"

// splitProps separates embedder passthrough options from bridge props.
func splitProps(props map[string]any) (bridge map[string]any, opts map[string]any) {
	opts = map[string]any{}
	if raw, ok := props[DOMProp]; ok {
		if m, ok := raw.(map[string]any); ok {
			opts = m
		}
	}

	bridge = make(map[string]any, len(props))
	for k, v := range props {
		if k == DOMProp {
			continue
		}
		bridge[k] = v
	}
	return bridge, opts
}
