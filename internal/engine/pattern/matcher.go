// Package pattern implements the content check: regex and contains rules
// matched against the text members of a package, with base64/hex decoding,
// Markdown code block awareness and exclude patterns.
package pattern

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Vtxdeo/vtx-security-cli/internal/rules"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
)

// Name is the check identifier.
const Name = "pattern"

const maxMatchedText = 120

// Matcher runs compiled content rules over every text member. The manifest
// is read only by rules whose scope includes it.
type Matcher struct {
	rules []*rules.CompiledRule
}

// NewMatcher creates a new pattern matcher with the given compiled rules.
func NewMatcher(compiled []*rules.CompiledRule) *Matcher {
	return &Matcher{rules: compiled}
}

func (m *Matcher) Name() string { return Name }

// Rules returns the number of rules the matcher applies.
func (m *Matcher) Rules() int { return len(m.rules) }

func (m *Matcher) Analyze(ctx context.Context, pkg *vtx.Package, _ types.ScanOptions) ([]types.Finding, error) {
	var findings []types.Finding
	for _, member := range pkg.TextMembers() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		findings = append(findings, m.scanMember(member)...)
	}
	if manifest, ok := pkg.Member(vtx.ManifestName); ok && manifest.IsText() {
		findings = append(findings, m.scanMember(manifest)...)
	}
	return findings, nil
}

func (m *Matcher) scanMember(member vtx.Member) []types.Finding {
	var findings []types.Finding
	content := string(member.Data)
	lines := member.Lines()
	idx := newLineIndex(content)

	var cbMap []bool
	if isMarkdown(member.Name) {
		cbMap = BuildCodeBlockMap(member.Data, len(lines))
	}

	for _, rule := range m.rules {
		if !rule.AppliesTo(member.Name) {
			continue
		}
		switch rule.MatchMode {
		case rules.MatchAny:
			findings = append(findings, matchAny(rule, content, lines, idx, member.Name, cbMap)...)
		case rules.MatchAll:
			findings = append(findings, matchAll(rule, content, lines, idx, member.Name, cbMap)...)
		}
	}

	return append(findings, DecodeAndRescan(member, m.rules, cbMap)...)
}

func matchAny(rule *rules.CompiledRule, content string, lines []string, idx lineIndex, name string, cbMap []bool) []types.Finding {
	var findings []types.Finding
	for _, pat := range rule.Patterns {
		for _, hit := range matchPattern(pat, content, idx) {
			if isExcluded(rule.ExcludePatterns, lines, hit.line) {
				continue
			}
			findings = append(findings, newFinding(rule, name, hit, isInCodeBlock(cbMap, hit.line), ""))
		}
	}
	return findings
}

func matchAll(rule *rules.CompiledRule, content string, lines []string, idx lineIndex, name string, cbMap []bool) []types.Finding {
	// All patterns must have at least one hit
	var allHits [][]matchHit
	for _, pat := range rule.Patterns {
		hits := matchPattern(pat, content, idx)
		if len(hits) == 0 {
			return nil
		}
		allHits = append(allHits, hits)
	}
	// Use the first hit of the first pattern as the finding location
	first := allHits[0][0]
	if isExcluded(rule.ExcludePatterns, lines, first.line) {
		return nil
	}
	parts := make([]string, len(allHits))
	for i, hits := range allHits {
		parts[i] = hits[0].text
	}
	first.text = strings.Join(parts, " + ")
	return []types.Finding{newFinding(rule, name, first, isInCodeBlock(cbMap, first.line), "")}
}

// newFinding renders a rule hit. Hits inside Markdown code blocks are
// documentation rather than payload and drop one severity level.
func newFinding(rule *rules.CompiledRule, member string, hit matchHit, inCodeBlock bool, encoding string) types.Finding {
	sev := rule.Severity
	label := rule.Name
	if label == "" {
		label = rule.ID
	}
	if encoding != "" {
		label += " (decoded " + encoding + ")"
	}
	msg := fmt.Sprintf("%s [%s]: %q", label, rule.ID, truncate(hit.text))
	if inCodeBlock {
		sev = types.DowngradeSeverity(sev)
		msg += " in code block"
	}
	return types.Finding{
		Severity: sev,
		Category: rule.Category,
		Message:  msg,
		Location: types.At(member, hit.line),
		Check:    Name,
	}
}

type matchHit struct {
	line int
	text string
}

// isExcluded returns true if the matched line or nearby context (3 lines before)
// matches any exclude pattern. This allows heading-based exclusions like
// "## Examples" to suppress matches on following lines.
func isExcluded(excludes []rules.CompiledPattern, lines []string, lineNum int) bool {
	if len(excludes) == 0 || lineNum < 1 || lineNum > len(lines) {
		return false
	}
	start := max(lineNum-3, 1)
	for _, ep := range excludes {
		for i := start; i <= lineNum; i++ {
			line := lines[i-1]
			switch ep.Type {
			case rules.PatternRegex:
				if ep.Regex != nil && ep.Regex.MatchString(line) {
					return true
				}
			case rules.PatternContains:
				if strings.Contains(strings.ToLower(line), ep.Value) {
					return true
				}
			}
		}
	}
	return false
}

func matchPattern(pat rules.CompiledPattern, content string, idx lineIndex) []matchHit {
	var hits []matchHit
	switch pat.Type {
	case rules.PatternRegex:
		if pat.Regex == nil {
			return nil
		}
		for _, loc := range pat.Regex.FindAllStringIndex(content, -1) {
			hits = append(hits, matchHit{line: idx.line(loc[0]), text: content[loc[0]:loc[1]]})
		}
	case rules.PatternContains:
		if pat.Value == "" {
			return nil
		}
		lower := asciiLower(content)
		target := pat.Value // already lowercased during compilation
		pos := 0
		for {
			i := strings.Index(lower[pos:], target)
			if i == -1 {
				break
			}
			abs := pos + i
			hits = append(hits, matchHit{line: idx.line(abs), text: content[abs : abs+len(target)]})
			pos = abs + len(target)
		}
	}
	return hits
}

// asciiLower folds only ASCII letters so byte offsets stay aligned with s.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func truncate(s string) string {
	if len(s) > maxMatchedText {
		return s[:maxMatchedText] + "..."
	}
	return s
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(content string) lineIndex {
	var idx lineIndex
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx = append(idx, i)
		}
	}
	return idx
}

func (idx lineIndex) line(offset int) int {
	return sort.SearchInts(idx, offset) + 1
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// isInCodeBlock checks whether a 1-based line number falls inside a code block.
func isInCodeBlock(cbMap []bool, lineNum int) bool {
	if cbMap == nil || lineNum < 1 || lineNum > len(cbMap) {
		return false
	}
	return cbMap[lineNum-1]
}
