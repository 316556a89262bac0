/*
Package transport carries envelopes between the native host and one
isolated runtime.

One Transport serves exactly one (native, runtime) pair. Delivery is
asynchronous, at-most-once, and ordered per direction: envelopes sent in
sequence on one side are observed in that sequence by the receiver's
handler. No ordering holds across directions; a call-request and a
concurrent prop-update may interleave either way.

Send is fire-and-forget. There is no retry: a broken transport surfaces
through OnClose and through ErrTransportClosed on later sends, and the
pending-call layer above converts that into rejected invocations rather
than hanging.

Two implementations are provided: Pair, an in-process duplex channel
pair used when the isolated runtime is embedded in the same process, and
a gorilla/websocket endpoint for runtimes attached through the dev
bridge server. Both frame envelopes identically, so either side can be
swapped without touching the protocol.
*/
package transport
