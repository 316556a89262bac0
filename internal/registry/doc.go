/*
Package registry implements the per-instance call registry.

A Registry maps opaque function handles to native functions exposed as
props. It is exclusively owned by one proxy instance: handles issued here
are never valid on another instance, and releasing the registry at
unmount invalidates every handle it ever issued.

Registration is idempotent per physical function reference: registering
the same function twice on a live registry yields the same handle.

Invocation is always asynchronous. Invoke runs the target on its own
goroutine and the caller suspends until the result, a timeout, or context
cancellation, so a synchronous native implementation is never observable
as a synchronous return across the bridge. Panics in user functions are
recovered and surfaced as ErrUserFunctionThrew; arguments are validated
against the serializable domain before the function runs.
*/
package registry
