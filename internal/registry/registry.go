// Package registry holds the table of host namespaces a plugin may import and
// the contract exports a plugin must declare.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Vtxdeo/vtx-security-cli/internal/registry/builtin"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// maxRegistryFileSize caps external registry tables (1 MB).
const maxRegistryFileSize = 1 << 20

// Risk classifies a namespace.
type Risk string

const (
	RiskSafe      Risk = "safe"
	RiskDangerous Risk = "dangerous"
)

// Capability is a coarse effect a namespace grants to the importing plugin.
type Capability string

const (
	ReadsPrivateData Capability = "reads_private_data"
	NetworkEgress    Capability = "network_egress"
	ExecutesCode     Capability = "executes_code"
	WritesFilesystem Capability = "writes_filesystem"
)

var knownCapabilities = []Capability{ReadsPrivateData, NetworkEgress, ExecutesCode, WritesFilesystem}

// Namespace is one registry entry.
type Namespace struct {
	Name         string       `yaml:"name"`
	Risk         Risk         `yaml:"risk"`
	Severity     string       `yaml:"severity,omitempty"`
	Description  string       `yaml:"description,omitempty"`
	Deprecated   bool         `yaml:"deprecated,omitempty"`
	ReplacedBy   string       `yaml:"replaced_by,omitempty"`
	Capabilities []Capability `yaml:"capabilities,omitempty"`

	level types.Severity
}

// Dangerous reports whether importing the namespace is itself a finding.
func (n Namespace) Dangerous() bool { return n.Risk == RiskDangerous }

// Level is the finding severity for a dangerous namespace.
func (n Namespace) Level() types.Severity { return n.level }

// Has reports whether the namespace grants c.
func (n Namespace) Has(c Capability) bool { return slices.Contains(n.Capabilities, c) }

// ContractExport is a symbol the host calls on every plugin.
type ContractExport struct {
	Name        string `yaml:"name"`
	Signature   string `yaml:"signature,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type document struct {
	ContractExports []ContractExport `yaml:"contract_exports"`
	Namespaces      []Namespace      `yaml:"namespaces"`
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	byName  map[string]Namespace
	names   []string
	exports []ContractExport
}

// Lookup resolves a canonical namespace to its most specific registered
// prefix. Matching is per segment: "vtx.host.fsx" does not match "vtx.host.fs".
func (r *Registry) Lookup(canonical string) (Namespace, bool) {
	for ns := canonical; ns != ""; {
		if entry, ok := r.byName[ns]; ok {
			return entry, true
		}
		i := strings.LastIndexByte(ns, '.')
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	return Namespace{}, false
}

// Namespaces returns all entries sorted by name.
func (r *Registry) Namespaces() []Namespace {
	out := make([]Namespace, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// ContractExports returns the mandatory exports in declaration order.
func (r *Registry) ContractExports() []ContractExport {
	return slices.Clone(r.exports)
}

// Contract returns the mandatory export called name.
func (r *Registry) Contract(name string) (ContractExport, bool) {
	for _, e := range r.exports {
		if e.Name == name {
			return e, true
		}
	}
	return ContractExport{}, false
}

// Parse decodes and validates a registry document. Unknown keys are rejected.
func Parse(data []byte) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}

	r := &Registry{byName: make(map[string]Namespace, len(doc.Namespaces))}
	for i, ns := range doc.Namespaces {
		compiled, err := compileNamespace(ns)
		if err != nil {
			return nil, fmt.Errorf("namespace %d (%q): %w", i, ns.Name, err)
		}
		if _, dup := r.byName[compiled.Name]; dup {
			return nil, fmt.Errorf("duplicate namespace %q", compiled.Name)
		}
		r.byName[compiled.Name] = compiled
		r.names = append(r.names, compiled.Name)
	}
	slices.Sort(r.names)

	seen := make(map[string]bool, len(doc.ContractExports))
	for _, e := range doc.ContractExports {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("contract export with empty name")
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate contract export %q", e.Name)
		}
		seen[e.Name] = true
		r.exports = append(r.exports, e)
	}
	return r, nil
}

func compileNamespace(ns Namespace) (Namespace, error) {
	canonical, err := vtx.NormalizeNamespace(ns.Name)
	if err != nil {
		return ns, err
	}
	ns.Name = canonical

	switch ns.Risk {
	case RiskSafe:
		if ns.Severity != "" {
			return ns, fmt.Errorf("severity is only valid for dangerous namespaces")
		}
	case RiskDangerous:
		sev, err := types.ParseSeverity(ns.Severity)
		if err != nil {
			return ns, err
		}
		if sev < types.SeverityHigh {
			return ns, fmt.Errorf("dangerous namespace severity must be high or critical, got %s", sev)
		}
		ns.level = sev
	default:
		return ns, fmt.Errorf("risk must be %q or %q, got %q", RiskSafe, RiskDangerous, ns.Risk)
	}

	if ns.ReplacedBy != "" {
		if !ns.Deprecated {
			return ns, fmt.Errorf("replaced_by requires deprecated: true")
		}
		if ns.ReplacedBy, err = vtx.NormalizeNamespace(ns.ReplacedBy); err != nil {
			return ns, fmt.Errorf("replaced_by: %w", err)
		}
	}
	for _, c := range ns.Capabilities {
		if !slices.Contains(knownCapabilities, c) {
			return ns, fmt.Errorf("unknown capability %q", c)
		}
	}
	return ns, nil
}

// LoadFile reads a registry table from disk.
func LoadFile(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	if info.Size() > maxRegistryFileSize {
		return nil, fmt.Errorf("registry %s: file is %d bytes, max %d", path, info.Size(), maxRegistryFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return r, nil
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Parse(builtin.YAML())
})

// Default returns the embedded registry. It is parsed once per process.
func Default() (*Registry, error) {
	return loadDefault()
}
