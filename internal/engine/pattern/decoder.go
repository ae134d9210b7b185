package pattern

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/Vtxdeo/vtx-security-cli/internal/rules"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

var (
	base64Re = regexp.MustCompile(`[A-Za-z0-9+/]{16,}={0,2}`)
	hexRe    = regexp.MustCompile(`(?:0x)?[0-9a-fA-F]{16,}`)
)

// DecodeAndRescan detects encoded blobs in a member, decodes them, and
// re-scans the decoded text with the rules that target the member. Hits are
// located at the line of the blob.
func DecodeAndRescan(member vtx.Member, compiled []*rules.CompiledRule, cbMap []bool) []types.Finding {
	var findings []types.Finding
	content := string(member.Data)
	idx := newLineIndex(content)

	for _, loc := range base64Re.FindAllStringIndex(content, -1) {
		encoded := content[loc[0]:loc[1]]
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			// try URL-safe
			decoded, err = base64.URLEncoding.DecodeString(encoded)
			if err != nil {
				continue
			}
		}
		if len(decoded) < 8 || !isPrintable(decoded) {
			continue
		}
		findings = append(findings, rescan(decoded, idx.line(loc[0]), member.Name, compiled, cbMap, "base64")...)
	}

	for _, loc := range hexRe.FindAllStringIndex(content, -1) {
		encoded := strings.TrimPrefix(content[loc[0]:loc[1]], "0x")
		if len(encoded)%2 != 0 {
			continue
		}
		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			continue
		}
		if len(decoded) < 8 || !isPrintable(decoded) {
			continue
		}
		findings = append(findings, rescan(decoded, idx.line(loc[0]), member.Name, compiled, cbMap, "hex")...)
	}

	return findings
}

func rescan(decoded []byte, origLine int, name string, compiled []*rules.CompiledRule, cbMap []bool, encoding string) []types.Finding {
	var findings []types.Finding
	text := string(decoded)
	idx := newLineIndex(text)
	inCB := isInCodeBlock(cbMap, origLine)

	for _, rule := range compiled {
		if !rule.AppliesTo(name) {
			continue
		}
		for _, pat := range rule.Patterns {
			for _, hit := range matchPattern(pat, text, idx) {
				hit.line = origLine
				findings = append(findings, newFinding(rule, name, hit, inCB, encoding))
			}
		}
	}
	return findings
}

func isPrintable(data []byte) bool {
	printable := 0
	for _, b := range data {
		if unicode.IsPrint(rune(b)) || b == '\n' || b == '\r' || b == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(len(data)) > 0.7
}
