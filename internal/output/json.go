package output

import (
	"encoding/json"
	"io"

	"github.com/Vtxdeo/vtx-security-cli/internal/report"
	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// JSONFormatter writes a single successful scan as the bare report
// document and anything else as an array of per-package entries.
type JSONFormatter struct{}

type jsonEntry struct {
	Path   string        `json:"path"`
	Report *types.Report `json:"report,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (f *JSONFormatter) Format(w io.Writer, scans []Scan) error {
	if len(scans) == 1 && scans[0].Report != nil {
		return report.Encode(w, scans[0].Report)
	}

	entries := make([]jsonEntry, 0, len(scans))
	for _, s := range scans {
		e := jsonEntry{Path: s.Path, Report: s.Report}
		if s.Err != nil {
			e.Error = s.Err.Error()
		}
		entries = append(entries, e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}
