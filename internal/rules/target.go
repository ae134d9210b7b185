package rules

import (
	"fmt"
	"path"
	"strings"
)

const manifestName = "manifest.json"

// target is a member selector. A glob without a slash matches the member's
// base name anywhere in the archive, a glob with one matches the full member
// path, and a trailing slash selects everything under a directory.
type target struct {
	glob string
	dir  bool
	full bool
}

func parseTarget(glob string) (target, error) {
	switch {
	case glob == "" || glob == "/":
		return target{}, fmt.Errorf("empty target")
	case strings.HasPrefix(glob, "/"):
		return target{}, fmt.Errorf("target %q: member paths are relative", glob)
	case strings.Contains(glob, `\`):
		return target{}, fmt.Errorf("target %q: member paths use forward slashes", glob)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(glob, "/"), "/") {
		if seg == ".." || seg == "." || seg == "" {
			return target{}, fmt.Errorf("target %q: segment %q never names a member", glob, seg)
		}
	}

	t := target{glob: glob}
	if strings.HasSuffix(glob, "/") {
		t.dir = true
		t.glob = strings.TrimSuffix(glob, "/")
	}
	t.full = t.dir || strings.Contains(t.glob, "/")
	if _, err := path.Match(t.glob, ""); err != nil {
		return target{}, fmt.Errorf("target %q: %w", glob, err)
	}
	return t, nil
}

func (t target) match(name string) bool {
	if t.dir {
		dir := path.Dir(name)
		for dir != "." && dir != "/" {
			if ok, _ := path.Match(t.glob, dir); ok {
				return true
			}
			dir = path.Dir(dir)
		}
		return false
	}
	subject := name
	if !t.full {
		subject = path.Base(name)
	}
	ok, _ := path.Match(t.glob, subject)
	return ok
}
