package resolver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
)

// EmitOptions controls artifact output.
type EmitOptions struct {
	// OutDir receives the bundles, factory stubs and manifest.
	OutDir string
	// Compress additionally writes a .gz sibling for every bundle so
	// the asset server can serve precompressed bodies.
	Compress bool
}

// Manifest describes everything a build emitted, persisted as
// manifest.yaml next to the artifacts.
type Manifest struct {
	GeneratedAt time.Time        `yaml:"generated_at"`
	Bundles     []ManifestBundle `yaml:"bundles"`
}

// ManifestBundle is one emitted boundary bundle.
type ManifestBundle struct {
	Module    string   `yaml:"module"`
	Artifact  string   `yaml:"artifact"`
	Factory   string   `yaml:"factory"`
	Files     []string `yaml:"files"`
	Importers []string `yaml:"importers,omitempty"`
}

// ManifestFile is the name Emit writes the manifest under.
const ManifestFile = "manifest.yaml"

// ArtifactPath returns the bundle artifact name for a boundary module.
func ArtifactPath(module string) string {
	return mangle(module) + ".bundle.js"
}

// FactoryPath returns the generated proxy factory stub name for a
// boundary module.
func FactoryPath(module string) string {
	return mangle(module) + ".proxy.js"
}

func mangle(module string) string {
	s := strings.TrimSuffix(module, filepath.Ext(module))
	return strings.NewReplacer("/", "_", ".", "_").Replace(s)
}

// Emit writes the build artifacts into opts.OutDir and returns the
// manifest it persisted.
func Emit(b *Build, opts EmitOptions) (*Manifest, error) {
	if opts.OutDir == "" {
		return nil, fmt.Errorf("emit: output directory required")
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}

	importersByModule := make(map[string][]string)
	for _, rw := range b.Rewrites {
		importersByModule[rw.Imported] = append(importersByModule[rw.Imported], rw.Importer)
	}

	m := &Manifest{GeneratedAt: time.Now().UTC()}
	for _, bundle := range b.Bundles {
		artifact := ArtifactPath(bundle.Module)
		factory := FactoryPath(bundle.Module)

		if err := writeFile(opts.OutDir, artifact, []byte(bundle.Source)); err != nil {
			return nil, err
		}
		if opts.Compress {
			gz, err := compress([]byte(bundle.Source))
			if err != nil {
				return nil, fmt.Errorf("emit: compress %s: %w", artifact, err)
			}
			if err := writeFile(opts.OutDir, artifact+".gz", gz); err != nil {
				return nil, err
			}
		}
		if err := writeFile(opts.OutDir, factory, []byte(factoryStub(bundle.Module, artifact))); err != nil {
			return nil, err
		}

		m.Bundles = append(m.Bundles, ManifestBundle{
			Module:    bundle.Module,
			Artifact:  artifact,
			Factory:   factory,
			Files:     bundle.Files,
			Importers: importersByModule[bundle.Module],
		})
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("emit: marshal manifest: %w", err)
	}
	if err := writeFile(opts.OutDir, ManifestFile, data); err != nil {
		return nil, err
	}
	return m, nil
}

func writeFile(dir, name string, data []byte) error {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("emit: write %s: %w", name, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// factoryStub is the module a native-side importer receives instead of
// the boundary module's real export. The host environment supplies
// createDOMComponentProxy; the stub only binds it to the right bundle.
func factoryStub(module, artifact string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Generated proxy factory for %s. Do not edit.\n", module)
	sb.WriteString("export default createDOMComponentProxy({\n")
	fmt.Fprintf(&sb, "  module: %q,\n", module)
	fmt.Fprintf(&sb, "  bundle: %q,\n", artifact)
	sb.WriteString("});\n")
	return sb.String()
}
