package resolver

import (
	"regexp"
	"strings"
)

// Directive is the sentinel a module places as its first statement to
// opt into isolated web rendering.
const Directive = "use dom"

var (
	importRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w$*{},\s]+?\s+from\s+)?["']([^"']+)["']`)
	requireRe = regexp.MustCompile(`(?:^|[^\w.])require\(\s*["']([^"']+)["']\s*\)`)
	exportRe  = regexp.MustCompile(`(?m)^\s*export\s+(?:\*|{[^}]*})\s+from\s+["']([^"']+)["']`)
)

// parseImports extracts import specifiers from a module source in the
// order they appear. Static imports, re-exports and CommonJS requires
// are all recognized; dynamic import() is deliberately not, since a
// boundary decision has to be static.
func parseImports(src string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(matches [][]string) {
		for _, m := range matches {
			spec := m[1]
			if !seen[spec] {
				seen[spec] = true
				out = append(out, spec)
			}
		}
	}
	add(importRe.FindAllStringSubmatch(src, -1))
	add(exportRe.FindAllStringSubmatch(src, -1))
	add(requireRe.FindAllStringSubmatch(src, -1))
	return out
}

// HasDirective reports whether the first statement of src is the
// "use dom" directive. Leading blank lines and comments are skipped;
// anything else before the directive disqualifies it, matching how JS
// engines treat prologue directives.
func HasDirective(src string) bool {
	rest := skipTrivia(src)
	for _, quoted := range []string{`"` + Directive + `"`, `'` + Directive + `'`} {
		if strings.HasPrefix(rest, quoted) {
			tail := strings.TrimLeft(rest[len(quoted):], " \t")
			return tail == "" || tail[0] == ';' || tail[0] == '\n' || tail[0] == '\r'
		}
	}
	return false
}

// skipTrivia strips leading whitespace, line comments and block
// comments.
func skipTrivia(src string) string {
	for {
		src = strings.TrimLeft(src, " \t\r\n")
		switch {
		case strings.HasPrefix(src, "//"):
			idx := strings.IndexByte(src, '\n')
			if idx < 0 {
				return ""
			}
			src = src[idx+1:]
		case strings.HasPrefix(src, "/*"):
			idx := strings.Index(src, "*/")
			if idx < 0 {
				return ""
			}
			src = src[idx+2:]
		default:
			return src
		}
	}
}
