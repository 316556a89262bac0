package resolver

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// Module is one source file in the scanned graph. Path is always
// slash-separated and relative to the scan root.
type Module struct {
	Path     string
	Source   string
	Imports  []string // resolved module paths, in source order
	External []string // bare specifiers left untouched (packages)
	Boundary bool
}

// Graph is the module graph of a scanned source tree.
type Graph struct {
	Root    string
	Modules map[string]*Module
}

// ScanOptions narrows the set of files a Scan considers.
type ScanOptions struct {
	// Include globs (doublestar syntax) matched against the
	// slash-relative path. Defaults to common JS/TS extensions.
	Include []string
	// Exclude globs. A path matching any exclude is skipped even when
	// an include matches it.
	Exclude []string
}

var defaultInclude = []string{"**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx", "**/*.mjs"}

var defaultExclude = []string{"**/node_modules/**", "**/*.d.ts"}

// Scan walks root and builds the import graph of every matching source
// file. Relative import specifiers are resolved against the importer;
// bare specifiers are recorded as external and otherwise ignored.
func Scan(root string, opts ScanOptions) (*Graph, error) {
	include := opts.Include
	if len(include) == 0 {
		include = defaultInclude
	}
	exclude := opts.Exclude
	if len(exclude) == 0 {
		exclude = defaultExclude
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var (
		mu      sync.Mutex
		modules = make(map[string]*Module)
	)

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(include, rel) || matchesAny(exclude, rel) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		src := string(data)
		mod := &Module{
			Path:     rel,
			Source:   src,
			Boundary: HasDirective(src),
		}
		mu.Lock()
		modules[rel] = mod
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan %s: %w", root, walkErr)
	}

	g := &Graph{Root: absRoot, Modules: modules}
	for _, mod := range modules {
		specs := parseImports(mod.Source)
		for _, spec := range specs {
			if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
				mod.External = append(mod.External, spec)
				continue
			}
			target, ok := g.resolveSpecifier(mod.Path, spec)
			if !ok {
				return nil, fmt.Errorf("resolve import %q in %s: no matching module", spec, mod.Path)
			}
			mod.Imports = append(mod.Imports, target)
		}
	}
	return g, nil
}

func matchesAny(globs []string, rel string) bool {
	for _, glob := range globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
	}
	return false
}

var resolveSuffixes = []string{"", ".js", ".jsx", ".ts", ".tsx", ".mjs", "/index.js", "/index.ts"}

// resolveSpecifier maps a relative import specifier to a module path
// already present in the graph, trying the usual extension and index
// fallbacks.
func (g *Graph) resolveSpecifier(importer, spec string) (string, bool) {
	base := path.Join(path.Dir(importer), spec)
	for _, suffix := range resolveSuffixes {
		if _, ok := g.Modules[base+suffix]; ok {
			return base + suffix, true
		}
	}
	return "", false
}

// Boundaries returns the boundary module paths in deterministic order.
func (g *Graph) Boundaries() []string {
	var out []string
	for p, m := range g.Modules {
		if m.Boundary {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// webMembers computes the set of modules reachable from any boundary
// module. Traversal continues through nested boundary modules: a
// boundary rendered by another boundary ships inside the outer bundle.
func (g *Graph) webMembers() map[string]bool {
	members := make(map[string]bool)
	var visit func(string)
	visit = func(p string) {
		if members[p] {
			return
		}
		members[p] = true
		mod := g.Modules[p]
		if mod == nil {
			return
		}
		for _, dep := range mod.Imports {
			visit(dep)
		}
	}
	for _, b := range g.Boundaries() {
		visit(b)
	}
	return members
}
