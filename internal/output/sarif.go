package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// ToolVersion is the scanner version reported in SARIF and Markdown output.
var ToolVersion = "dev"

// SARIFFormatter outputs findings in SARIF 2.1.0 format for GitHub Code
// Scanning. Each finding category is one SARIF rule.
type SARIFFormatter struct{}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Results     []sarifResult     `json:"results"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID     string          `json:"ruleId"`
	RuleIndex  int             `json:"ruleIndex"`
	Level      string          `json:"level"`
	Message    sarifMessage    `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation  `json:"physicalLocation"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

// sarifLogicalLocation names the archive member, which has no URI of its own.
type sarifLogicalLocation struct {
	Name               string `json:"name"`
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind"`
}

type sarifInvocation struct {
	ExecutionSuccessful bool                `json:"executionSuccessful"`
	Notifications       []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

func (f *SARIFFormatter) Format(w io.Writer, scans []Scan) error {
	ruleIndex := map[string]int{}
	rules := []sarifRule{}
	results := []sarifResult{}
	inv := sarifInvocation{ExecutionSuccessful: true}

	for _, s := range scans {
		uri := filepath.ToSlash(s.Path)
		if s.Err != nil {
			inv.ExecutionSuccessful = false
			inv.Notifications = append(inv.Notifications, sarifNotification{
				Level:   "error",
				Message: sarifMessage{Text: s.Err.Error()},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: sarifArtifactLocation{URI: uri},
						Region:           sarifRegion{StartLine: 1},
					},
				}},
			})
			continue
		}

		for _, finding := range s.Report.Findings {
			idx, ok := ruleIndex[finding.Category]
			if !ok {
				idx = len(rules)
				ruleIndex[finding.Category] = idx
				rules = append(rules, sarifRule{
					ID:               finding.Category,
					Name:             finding.Category,
					ShortDescription: sarifMessage{Text: finding.Category},
					DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(finding.Severity)},
					Properties:       sarifRuleProperties{Tags: []string{"security", finding.Check}},
				})
			}

			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: uri},
					Region:           sarifRegion{StartLine: 1},
				},
			}
			if finding.Location != nil {
				loc.LogicalLocations = []sarifLogicalLocation{{
					Name:               finding.Location.Path,
					FullyQualifiedName: fmt.Sprintf("%s!/%s", uri, finding.Location),
					Kind:               "member",
				}}
			}
			results = append(results, sarifResult{
				RuleID:    finding.Category,
				RuleIndex: idx,
				Level:     severityToLevel(finding.Severity),
				Message:   sarifMessage{Text: finding.Message},
				Locations: []sarifLocation{loc},
				Properties: map[string]any{
					"severity": finding.Severity.String(),
					"check":    finding.Check,
					"package":  s.Report.Package.Name + "@" + s.Report.Package.Version,
				},
			})
		}
	}

	log := sarifLog{
		Schema:  "https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "vtx-security",
						Version:        ToolVersion,
						InformationURI: "https://github.com/Vtxdeo/vtx-security-cli",
						Rules:          rules,
					},
				},
				Results:     results,
				Invocations: []sarifInvocation{inv},
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func severityToLevel(sev types.Severity) string {
	switch sev {
	case types.SeverityCritical, types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	case types.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
