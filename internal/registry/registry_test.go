package registry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/registry"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := registry.Default()
	require.NoError(t, err)

	again, err := registry.Default()
	require.NoError(t, err)
	require.Same(t, r, again)

	exports := r.ContractExports()
	require.Len(t, exports, 2)
	require.Equal(t, "vtx_plugin_init", exports[0].Name)
	require.Equal(t, "fn() -> i32", exports[0].Signature)
	require.Equal(t, "vtx_plugin_info", exports[1].Name)

	names := make([]string, 0)
	for _, ns := range r.Namespaces() {
		names = append(names, ns.Name)
	}
	require.IsNonDecreasing(t, names)
	require.Contains(t, names, "vtx.host.log")
	require.Contains(t, names, "vtx.host.process")
}

func TestLookup(t *testing.T) {
	r, err := registry.Default()
	require.NoError(t, err)

	tests := []struct {
		query     string
		want      string
		found     bool
		dangerous bool
		level     types.Severity
	}{
		{"vtx.host.log", "vtx.host.log", true, false, types.SeverityInfo},
		{"vtx.host.fs", "vtx.host.fs", true, true, types.SeverityHigh},
		{"vtx.host.fs.read", "vtx.host.fs", true, true, types.SeverityHigh},
		{"vtx.host.process.spawn", "vtx.host.process", true, true, types.SeverityCritical},
		{"vtx.host.net.socket", "vtx.host.net.socket", true, true, types.SeverityHigh},
		{"vtx.core.alloc", "vtx.core", true, false, types.SeverityInfo},
		{"vtx.host.fsx", "", false, false, types.SeverityInfo},
		{"vtx.host.net", "", false, false, types.SeverityInfo},
		{"vtx.host", "", false, false, types.SeverityInfo},
		{"evil.exfil", "", false, false, types.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ns, ok := r.Lookup(tt.query)
			require.Equal(t, tt.found, ok)
			if !ok {
				return
			}
			require.Equal(t, tt.want, ns.Name)
			require.Equal(t, tt.dangerous, ns.Dangerous())
			if tt.dangerous {
				require.Equal(t, tt.level, ns.Level())
			}
		})
	}
}

func TestDeprecatedAndCapabilities(t *testing.T) {
	r, err := registry.Default()
	require.NoError(t, err)

	legacy, ok := r.Lookup("vtx.host.legacy_log")
	require.True(t, ok)
	require.True(t, legacy.Deprecated)
	require.Equal(t, "vtx.host.log", legacy.ReplacedBy)

	fs, ok := r.Lookup("vtx.host.fs")
	require.True(t, ok)
	require.True(t, fs.Has(registry.ReadsPrivateData))
	require.True(t, fs.Has(registry.WritesFilesystem))
	require.False(t, fs.Has(registry.NetworkEgress))
}

func TestContract(t *testing.T) {
	r, err := registry.Default()
	require.NoError(t, err)

	c, ok := r.Contract("vtx_plugin_info")
	require.True(t, ok)
	require.Equal(t, "fn() -> ptr", c.Signature)

	_, ok = r.Contract("main")
	require.False(t, ok)
}

func TestParseNormalizesNames(t *testing.T) {
	r, err := registry.Parse([]byte(`
namespaces:
  - name: Acme/Storage
    risk: safe
`))
	require.NoError(t, err)
	ns, ok := r.Lookup("acme.storage.blob")
	require.True(t, ok)
	require.Equal(t, "acme.storage", ns.Name)
	require.Empty(t, r.ContractExports())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "namespaces:\n  - name: a\n    risk: safe\n    color: red\n", "field color not found"},
		{"unknown top-level key", "plugins: []\n", "field plugins not found"},
		{"bad risk", "namespaces:\n  - name: a\n    risk: maybe\n", "risk must be"},
		{"dangerous without severity", "namespaces:\n  - name: a\n    risk: dangerous\n", "unknown severity"},
		{"dangerous too low", "namespaces:\n  - name: a\n    risk: dangerous\n    severity: low\n", "high or critical"},
		{"safe with severity", "namespaces:\n  - name: a\n    risk: safe\n    severity: high\n", "only valid for dangerous"},
		{"bad name", "namespaces:\n  - name: a..b\n    risk: safe\n", "empty segment"},
		{"duplicate", "namespaces:\n  - name: a.b\n    risk: safe\n  - name: a/b\n    risk: safe\n", "duplicate namespace"},
		{"unknown capability", "namespaces:\n  - name: a\n    risk: safe\n    capabilities: [teleport]\n", "unknown capability"},
		{"replaced_by without deprecated", "namespaces:\n  - name: a\n    risk: safe\n    replaced_by: b\n", "requires deprecated"},
		{"empty export", "contract_exports:\n  - signature: x\n", "empty name"},
		{"duplicate export", "contract_exports:\n  - name: a\n  - name: a\n", "duplicate contract export"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Parse([]byte(tt.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contract_exports:\n  - name: start\nnamespaces:\n  - name: corp.api\n    risk: safe\n"), 0o644))

	r, err := registry.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, r.ContractExports(), 1)
	_, ok := r.Lookup("vtx.host.log")
	require.False(t, ok, "an external table replaces the default")

	_, err = registry.LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("#", 1<<20+1)), 0o644))
	_, err = registry.LoadFile(big)
	require.ErrorContains(t, err, "max")
}
