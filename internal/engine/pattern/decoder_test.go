package pattern_test

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/Vtxdeo/vtx-security-cli/internal/engine/pattern"
	"github.com/Vtxdeo/vtx-security-cli/internal/rules"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
	"github.com/Vtxdeo/vtx-security-cli/internal/vtx"
	"github.com/stretchr/testify/require"
)

func decodeRule(t *testing.T) *rules.CompiledRule {
	return compileTestRule(t, rules.RawRule{
		ID:       "TEST_DECODE",
		Name:     "Decode Test",
		Severity: "HIGH",
		Category: "test",
		Patterns: []rules.RawPattern{
			{Type: rules.PatternRegex, Value: `(?i)stratum\+tcp://`},
		},
	})
}

func TestDecodeAndRescanBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("connect to stratum+tcp://pool.example:3333 now"))
	member := vtx.Member{Name: "cfg.txt", Data: []byte("Normal content\n" + encoded + "\nMore content\n")}

	findings := pattern.DecodeAndRescan(member, []*rules.CompiledRule{decodeRule(t)}, nil)
	require.Len(t, findings, 1)
	require.Contains(t, findings[0].Message, "decoded base64")
	require.Equal(t, types.At("cfg.txt", 2), findings[0].Location)
	require.Equal(t, types.SeverityHigh, findings[0].Severity)
}

func TestDecodeAndRescanHex(t *testing.T) {
	encoded := hex.EncodeToString([]byte("use stratum+tcp://x.example"))
	member := vtx.Member{Name: "cfg.txt", Data: []byte("blob = 0x" + encoded + "\n")}

	findings := pattern.DecodeAndRescan(member, []*rules.CompiledRule{decodeRule(t)}, nil)
	require.NotEmpty(t, findings)
	require.Contains(t, findings[0].Message, "decoded hex")
}

func TestDecodeAndRescanCodeBlock(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("connect to stratum+tcp://pool.example:3333 now"))
	member := vtx.Member{Name: "README.md", Data: []byte("x\n" + encoded + "\n")}

	findings := pattern.DecodeAndRescan(member, []*rules.CompiledRule{decodeRule(t)}, []bool{false, true, false})
	require.Len(t, findings, 1)
	require.Equal(t, types.SeverityMedium, findings[0].Severity)
}

func TestDecodeAndRescanNoFalsePositive(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("just a normal string here"))
	member := vtx.Member{Name: "cfg.txt", Data: []byte(encoded)}

	findings := pattern.DecodeAndRescan(member, []*rules.CompiledRule{decodeRule(t)}, nil)
	require.Empty(t, findings)
}
