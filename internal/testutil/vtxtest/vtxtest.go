// Package vtxtest builds VTX archives in memory for tests.
package vtxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// File is one archive member to write. A zero Mode writes a regular file and
// a zero Method deflates.
type File struct {
	Name   string
	Body   string
	Mode   fs.FileMode
	Method uint16
}

// CleanManifest declares the full default contract and imports only
// namespaces the built-in registry considers safe.
const CleanManifest = `{
  // hello world plugin
  "name": "hello",
  "version": "1.0.0",
  "entry": "plugin.wasm",
  "imports": [
    "vtx.host.log",
    "vtx/host/config",
  ],
  "exports": [
    {"name": "vtx_plugin_init", "signature": "fn() -> i32"},
    "vtx_plugin_info",
  ],
}`

// Manifest returns a manifest.json member with the given body.
func Manifest(body string) File {
	return File{Name: "manifest.json", Body: body}
}

// Payload returns the entry module member referenced by CleanManifest.
func Payload() File {
	return File{Name: "plugin.wasm", Body: "\x00asm\x01\x00\x00\x00"}
}

// Archive returns the bytes of a zip container holding files in order.
func Archive(tb testing.TB, files ...File) []byte {
	tb.Helper()
	data, err := Build(files...)
	if err != nil {
		tb.Fatalf("building archive: %v", err)
	}
	return data
}

// Build is Archive for callers without a testing.TB, such as property tests.
func Build(files ...File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate}
		if f.Method != 0 {
			hdr.Method = f.Method
		}
		if f.Mode != 0 {
			hdr.SetMode(f.Mode)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("creating member %s: %w", f.Name, err)
		}
		if _, err := w.Write([]byte(f.Body)); err != nil {
			return nil, fmt.Errorf("writing member %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clean returns a package that produces no findings under default policy.
func Clean(tb testing.TB) []byte {
	tb.Helper()
	return Archive(tb, Manifest(CleanManifest), Payload())
}

// Write stores data as dir/name and returns the full path.
func Write(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		tb.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// ManifestFor renders a manifest for plugin "p" with entry plugin.wasm. The
// first import is on line 6 and each further import on the next line; the
// exports follow the same layout after the imports block.
func ManifestFor(imports, exports []string) string {
	var b strings.Builder
	b.WriteString("{\n  \"name\": \"p\",\n  \"version\": \"1.0.0\",\n  \"entry\": \"plugin.wasm\",\n  \"imports\": [\n")
	for _, ns := range imports {
		b.WriteString("    " + strconv.Quote(ns) + ",\n")
	}
	b.WriteString("  ],\n  \"exports\": [\n")
	for _, name := range exports {
		b.WriteString("    " + strconv.Quote(name) + ",\n")
	}
	b.WriteString("  ]\n}\n")
	return b.String()
}

// Contract lists the default mandatory exports.
func Contract() []string {
	return []string{"vtx_plugin_init", "vtx_plugin_info"}
}

// Load builds an archive from a manifest body plus files and loads it with
// default limits.
func Load(tb testing.TB, manifest string, files ...File) *vtx.Package {
	tb.Helper()
	data := Archive(tb, append([]File{Manifest(manifest)}, files...)...)
	pkg, err := vtx.LoadBytes("test.vtx", data, types.Limits{})
	if err != nil {
		tb.Fatalf("loading package: %v", err)
	}
	return pkg
}
