package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/Vtxdeo/vtx-security-cli/internal/rules/builtin"
)

// maxRuleFileSize caps a single custom rule file.
const maxRuleFileSize = 1 << 20

// BuiltinOrigin prefixes the origin of every embedded rule.
const BuiltinOrigin = "builtin"

// LoadBuiltin reads the rules embedded in the binary.
func LoadBuiltin() ([]RawRule, error) {
	return (&loader{fsys: builtin.FS(), origin: BuiltinOrigin, strict: true}).load()
}

// LoadDir reads every *.yaml and *.yml file under dir. Unknown keys are
// rejected and files over 1 MiB are skipped with a warning.
func LoadDir(dir string) ([]RawRule, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	l := &loader{fsys: os.DirFS(dir), origin: dir, strict: true, maxSize: maxRuleFileSize}
	return l.load()
}

// LoadFS reads rules from fsys, labelling them with origin. Unknown keys
// are rejected.
func LoadFS(fsys fs.FS, origin string) ([]RawRule, error) {
	return (&loader{fsys: fsys, origin: origin, strict: true}).load()
}

type loader struct {
	fsys    fs.FS
	origin  string
	strict  bool
	maxSize int64
}

func (l *loader) load() ([]RawRule, error) {
	var all []RawRule
	err := fs.WalkDir(l.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(name) {
			return nil
		}
		if l.maxSize > 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > l.maxSize {
				log.Warn("skipping oversized rule file", "path", l.where(name), "size", info.Size(), "max", l.maxSize)
				return nil
			}
		}
		data, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", l.where(name), err)
		}
		docs, err := l.decode(name, data)
		if err != nil {
			return err
		}
		all = append(all, docs...)
		return nil
	})
	return all, err
}

// decode reads every document of a rule file. Blank documents are allowed
// between separators; anything else must carry an id.
func (l *loader) decode(name string, data []byte) ([]RawRule, error) {
	var out []RawRule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(l.strict)
	for n := 1; ; n++ {
		var raw RawRule
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("%s document %d: %w", l.where(name), n, err)
		}
		if reflect.ValueOf(raw).IsZero() {
			continue
		}
		raw.Origin = fmt.Sprintf("%s#%d", l.where(name), n)
		if raw.ID == "" {
			return nil, fmt.Errorf("%s: missing id", raw.Origin)
		}
		out = append(out, raw)
	}
}

func (l *loader) where(name string) string {
	return l.origin + ":" + name
}

func isRuleFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
