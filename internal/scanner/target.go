package scanner

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PackageExt is the file extension of a VTX plugin package.
const PackageExt = ".vtx"

// IgnoreFile lists glob patterns, one per line, excluded from discovery.
const IgnoreFile = ".vtx-securityignore"

// Target is a package file found on disk.
type Target struct {
	Path    string
	RelPath string
}

// TargetDiscovery finds package files under a directory.
type TargetDiscovery struct {
	IgnorePatterns []string
}

// Discover returns the packages to scan for root. A regular file is returned
// as is whatever its extension; a directory is walked for *.vtx files in
// lexical order, honoring the ignore file at its top.
func (td *TargetDiscovery) Discover(root string) ([]*Target, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []*Target{{Path: root, RelPath: filepath.Base(root)}}, nil
	}

	td.loadIgnoreFile(root)

	var targets []*Target
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "node_modules", "vendor":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), PackageExt) || !d.Type().IsRegular() {
			return nil
		}
		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)
		if td.isIgnored(relPath) {
			return nil
		}
		targets = append(targets, &Target{Path: path, RelPath: relPath})
		return nil
	})
	return targets, err
}

func (td *TargetDiscovery) loadIgnoreFile(root string) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			td.IgnorePatterns = append(td.IgnorePatterns, line)
		}
	}
}

func (td *TargetDiscovery) isIgnored(relPath string) bool {
	for _, pattern := range td.IgnorePatterns {
		if matchGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchGlob extends path.Match with "**":
// "dir/**" matches anything under dir/, "**/x.vtx" matches x.vtx at any
// depth and "a/**/b" matches b anywhere below a/.
func matchGlob(pattern, relPath string) bool {
	if !strings.Contains(pattern, "**") {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		matched, _ := filepath.Match(pattern, filepath.Base(relPath))
		return matched
	}

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if strings.HasPrefix(relPath, prefix+"/") || relPath == prefix {
			return true
		}
	}

	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok && matchSuffixes(suffix, relPath) {
		return true
	}

	if idx := strings.Index(pattern, "/**/"); idx >= 0 {
		prefix, suffix := pattern[:idx], pattern[idx+4:]
		if rest, ok := strings.CutPrefix(relPath, prefix+"/"); ok && matchSuffixes(suffix, rest) {
			return true
		}
	}

	return false
}

// matchSuffixes matches glob against every trailing run of path segments.
func matchSuffixes(glob, relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := range parts {
		if matched, _ := filepath.Match(glob, strings.Join(parts[i:], "/")); matched {
			return true
		}
	}
	return false
}
