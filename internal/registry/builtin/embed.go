// Package builtin embeds the default namespace registry.
package builtin

import _ "embed"

//go:embed registry.yaml
var registryYAML []byte

// YAML returns the embedded registry document.
func YAML() []byte {
	return registryYAML
}
