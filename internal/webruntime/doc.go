/*
Package webruntime hosts isolated web runtimes on the goja engine.

Each mounted boundary component gets its own Runtime: an isolated VM
with a stripped global scope, a captured console forwarded to the
native log sink, and a `bridge` global that is the only doorway to the
native side. There is no shared state between runtimes and no way to
reach native memory; everything crosses as envelopes on the instance's
transport.

# Execution model

A runtime is an actor. One loop goroutine owns the VM; inbound
envelopes, bundle evaluation, and promise settlement all run as jobs on
that loop, so bundle code never races with envelope handling.

# Bridge surface seen by bundle code

	bridge.instanceId          bridge id of the mounted instance
	bridge.props               current prop object (handles appear as
	                           async functions returning promises)
	bridge.onProps(fn)         subscribe to prop updates
	bridge.ready()             report mounted (optional; automatic
	                           after the bundle evaluates)
	__DOM_BASE_URL__           base URL for locally served assets

Native action props are invoked like ordinary functions but always
settle asynchronously; results and failures arrive as resolved or
rejected promises correlated by call id.
*/
package webruntime
