/*
Package proxy implements the native-side stand-in for a boundary module.

An Instance owns everything one mounted DOM component needs: a call
registry for its native actions, a transport pair to its isolated
runtime, and the embedder that boots the runtime with the module's
compiled bundle. Nothing here is shared between instances — mounting the
same module twice produces two fully independent runtimes.

# Lifecycle

	unmounted -> mounting -> ready -> unmounting -> unmounted (terminal)

Mount starts the runtime and sends the initial prop snapshot. Prop
updates issued before the runtime reports mounted are queued and flushed
in order when it does. Unmount releases every handle, rejects in-flight
invocations, and tears the transport down; a spent instance cannot be
remounted.

# Props

Prop maps stay within the serializable domain. Top-level NativeFunc
props become function handles; the reserved "dom" prop carries embedder
passthrough options (scrollEnabled, style, ...) and never crosses into
the runtime snapshot. Serialization problems fail SetProps before any
envelope is sent.

# Calls

Each inbound call-request is answered with exactly one call-response,
carrying either the result or a serialized error. User function
failures, timeouts, and released handles all come back as error
payloads; a request is never dropped.
*/
package proxy
