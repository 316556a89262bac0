// Package id provides centralized ID generation for the bridge.
//
// All runtime identifiers are prefixed ULIDs:
//   - inst_* for mounted proxy instances
//   - hdl_*  for function handles
//   - call_* for invocation correlation ids
//
// ULIDs are lexicographically sortable, which keeps log output and
// envelope traces readable in issue order, and the prefixes make it
// impossible to confuse a handle with a correlation id in a log line.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies one mounted proxy instance.
type InstanceID string

// HandleID identifies a registered native function.
type HandleID string

// CallID correlates a call-request with its call-response.
type CallID string

// ID prefixes, for debugging and type identification.
const (
	InstancePrefix = "inst"
	HandlePrefix   = "hdl"
	CallPrefix     = "call"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewInstanceID generates a new proxy instance ID.
func NewInstanceID() InstanceID {
	return InstanceID(Default().GenerateWithPrefix(InstancePrefix))
}

// NewHandleID generates a new function handle ID.
func NewHandleID() HandleID {
	return HandleID(Default().GenerateWithPrefix(HandlePrefix))
}

// NewCallID generates a new call correlation ID.
func NewCallID() CallID {
	return CallID(Default().GenerateWithPrefix(CallPrefix))
}

func (id InstanceID) String() string { return string(id) }
func (id HandleID) String() string   { return string(id) }
func (id CallID) String() string     { return string(id) }

// IsValid checks whether raw is a prefixed ULID with the given prefix.
func IsValid(raw, prefix string) bool {
	want := prefix + "_"
	if len(raw) <= len(want) || raw[:len(want)] != want {
		return false
	}
	_, err := ulid.Parse(raw[len(want):])
	return err == nil
}
