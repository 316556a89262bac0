package resolver

import (
	"fmt"
	"sort"
	"strings"
)

// Resolution says how an import edge is satisfied.
type Resolution string

const (
	// ResolveDirect keeps the import pointing at the module's real
	// export.
	ResolveDirect Resolution = "direct"
	// ResolveProxyFactory swaps the import for a generated proxy
	// factory: the importer receives a component constructor whose
	// rendering happens in an isolated web runtime.
	ResolveProxyFactory Resolution = "proxy-factory"
)

// ResolveImport decides how the edge importer -> imported resolves.
// The answer depends on which side of the boundary the importer sits:
// a boundary module imported from native code becomes a proxy factory,
// while the same module imported from within the web graph stays a
// plain component.
func (g *Graph) ResolveImport(importer, imported string) (Resolution, error) {
	impMod, ok := g.Modules[importer]
	if !ok {
		return "", fmt.Errorf("unknown importer %q", importer)
	}
	target, ok := g.Modules[imported]
	if !ok {
		return "", fmt.Errorf("unknown import %q", imported)
	}
	if !hasImport(impMod, imported) {
		return "", fmt.Errorf("%s does not import %s", importer, imported)
	}
	if target.Boundary && !g.webMembers()[importer] {
		return ResolveProxyFactory, nil
	}
	return ResolveDirect, nil
}

func hasImport(m *Module, target string) bool {
	for _, dep := range m.Imports {
		if dep == target {
			return true
		}
	}
	return false
}

// Bundle is the isolated artifact built for one boundary module: the
// module plus its transitive dependencies, dependency-first.
type Bundle struct {
	Module string
	Files  []string
	Source string
}

// Rewrite records one native-side import edge replaced by a proxy
// factory stub.
type Rewrite struct {
	Importer string
	Imported string
	Factory  string
}

// Build is the outcome of resolving a graph.
type Build struct {
	Bundles  []Bundle
	Rewrites []Rewrite
}

// Resolve partitions the graph: one bundle per boundary module, one
// rewrite per native-side import of a boundary module. The graph is
// left untouched; callers feed the Build to Emit.
func Resolve(g *Graph) (*Build, error) {
	web := g.webMembers()
	b := &Build{}

	for _, boundary := range g.Boundaries() {
		files := topoOrder(g, boundary)
		var src strings.Builder
		for i, f := range files {
			if i > 0 {
				src.WriteString("\n")
			}
			fmt.Fprintf(&src, "// module: %s\n", f)
			src.WriteString(stripImports(g.Modules[f].Source))
			src.WriteString("\n")
		}
		b.Bundles = append(b.Bundles, Bundle{
			Module: boundary,
			Files:  files,
			Source: src.String(),
		})
	}

	var importers []string
	for p := range g.Modules {
		importers = append(importers, p)
	}
	sort.Strings(importers)
	for _, p := range importers {
		if web[p] {
			continue
		}
		for _, dep := range g.Modules[p].Imports {
			if g.Modules[dep] != nil && g.Modules[dep].Boundary {
				b.Rewrites = append(b.Rewrites, Rewrite{
					Importer: p,
					Imported: dep,
					Factory:  FactoryPath(dep),
				})
			}
		}
	}
	return b, nil
}

// topoOrder returns the transitive closure of root with dependencies
// before their importers. Import cycles are tolerated; the first visit
// wins.
func topoOrder(g *Graph, root string) []string {
	var order []string
	state := make(map[string]int) // 0 unvisited, 1 visiting, 2 done
	var visit func(string)
	visit = func(p string) {
		if state[p] != 0 {
			return
		}
		state[p] = 1
		if mod := g.Modules[p]; mod != nil {
			for _, dep := range mod.Imports {
				visit(dep)
			}
		}
		state[p] = 2
		order = append(order, p)
	}
	visit(root)
	return order
}

// stripImports drops static import and re-export lines: bundled
// modules are concatenated into one scope, so the edges they expressed
// are already satisfied by ordering. Bare package imports are dropped
// too; the isolated runtime has no module loader.
func stripImports(src string) string {
	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if importRe.MatchString(line) || exportRe.MatchString(line) {
			continue
		}
		if strings.HasPrefix(trimmed, "export default ") {
			line = strings.Replace(line, "export default ", "", 1)
		} else if strings.HasPrefix(trimmed, "export ") {
			line = strings.Replace(line, "export ", "", 1)
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
