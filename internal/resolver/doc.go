/*
Package resolver performs build-time boundary resolution over a JS/TS
module graph.

A module opting into isolated web rendering carries the "use dom"
directive as its first statement. The resolver scans a source tree,
builds the import graph, and partitions it around those modules:

  - every boundary module gets an isolated bundle containing the module
    and its transitive dependencies as reachable from the web graph;
  - every native-side import of a boundary module is rewritten to a
    generated proxy factory stub instead of the original export.

A boundary module imported from within the web graph (one boundary
component rendering another) resolves to its direct export, unchanged:
both sides already share a runtime, so no proxy wrapping is inserted.
The decision is made once per build, per importer, never at runtime.

Emit writes the bundle artifacts (plus gzip variants for the asset
server), the generated factory stubs, and a YAML manifest describing
the rewrites.
*/
package resolver
