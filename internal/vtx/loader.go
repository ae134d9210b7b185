package vtx

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/blake3"

	"github.com/Vtxdeo/vtx-security-cli/internal/types"
)

// ratioFloor is the uncompressed size below which the compression ratio
// safeguard is not applied; tiny members legitimately compress very well.
const ratioFloor = 1 << 20

// zip general purpose flag bit 0: entry is encrypted.
const flagEncrypted = 0x1

var binaryExts = map[string]bool{
	".wasm": true, ".so": true, ".dll": true, ".dylib": true, ".exe": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".vtx": true, ".pdf": true, ".mp3": true, ".mp4": true,
	".bin": true, ".o": true, ".a": true,
}

// IsBinaryExt reports whether name carries an extension that is never
// scanned as text.
func IsBinaryExt(name string) bool {
	return binaryExts[strings.ToLower(path.Ext(name))]
}

// Load reads the archive at path and returns its package view.
// Errors are *types.LoadError of kind ErrMalformedArchive or ErrInvalidManifest.
func Load(path string, limits types.Limits) (*Package, error) {
	limits = limits.WithDefaults()

	info, err := os.Stat(path)
	if err != nil {
		return nil, types.Malformed(path, "cannot stat archive", err)
	}
	if !info.Mode().IsRegular() {
		return nil, types.Malformed(path, "not a regular file", nil)
	}
	if info.Size() > limits.MaxArchiveSize {
		return nil, types.Malformed(path, fmt.Sprintf("archive is %d bytes, max %d", info.Size(), limits.MaxArchiveSize), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, types.Malformed(path, "cannot open archive", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limits.MaxArchiveSize+1))
	if err != nil {
		return nil, types.Malformed(path, "reading archive", err)
	}
	return LoadBytes(path, data, limits)
}

// LoadBytes parses an archive already held in memory. path is only used for
// error context and the package's Path field.
func LoadBytes(path string, data []byte, limits types.Limits) (*Package, error) {
	limits = limits.WithDefaults()
	if int64(len(data)) > limits.MaxArchiveSize {
		return nil, types.Malformed(path, fmt.Sprintf("archive is %d bytes, max %d", len(data), limits.MaxArchiveSize), nil)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, types.Malformed(path, "not a readable zip container", err)
	}
	if len(zr.File) > limits.MaxMembers {
		return nil, types.Malformed(path, fmt.Sprintf("archive has %d members, max %d", len(zr.File), limits.MaxMembers), nil)
	}

	sum := blake3.Sum256(data)
	pkg := &Package{
		Path:   path,
		Digest: hex.EncodeToString(sum[:]),
		Size:   int64(len(data)),
		byName: make(map[string]int, len(zr.File)),
	}

	var (
		total        int64
		manifestData []byte
	)
	for _, f := range zr.File {
		if _, dup := pkg.byName[f.Name]; dup {
			return nil, types.Malformed(path, fmt.Sprintf("duplicate member %q", f.Name), nil)
		}
		if err := checkHeader(f, limits); err != nil {
			return nil, types.Malformed(path, err.Error(), nil)
		}

		m := Member{
			Name:           f.Name,
			Size:           int64(f.UncompressedSize64),
			CompressedSize: int64(f.CompressedSize64),
			Mode:           f.Mode(),
		}

		switch {
		case m.IsDir():
		case f.Name == ManifestName:
			if m.Size > limits.MaxManifestSize {
				return nil, types.Malformed(path, fmt.Sprintf("manifest is %d bytes, max %d", m.Size, limits.MaxManifestSize), nil)
			}
			manifestData, err = readMember(f, limits.MaxManifestSize)
			if err != nil {
				return nil, types.Malformed(path, fmt.Sprintf("reading %s", f.Name), err)
			}
			m.Size = int64(len(manifestData))
			m.Data = manifestData
		case isTextCandidate(m, limits):
			content, err := readMember(f, limits.MaxTextMemberSize)
			if err != nil {
				return nil, types.Malformed(path, fmt.Sprintf("reading %s", f.Name), err)
			}
			m.Size = int64(len(content))
			if utf8.Valid(content) {
				m.Data = content
			}
		default:
			n, err := drainMember(f, limits.MaxMemberSize)
			if err != nil {
				return nil, types.Malformed(path, fmt.Sprintf("reading %s", f.Name), err)
			}
			m.Size = n
		}

		total += m.Size
		if total > limits.MaxTotalSize {
			return nil, types.Malformed(path, fmt.Sprintf("total uncompressed size exceeds %d bytes", limits.MaxTotalSize), nil)
		}
		pkg.byName[m.Name] = len(pkg.Members)
		pkg.Members = append(pkg.Members, m)
	}

	if manifestData == nil {
		return nil, types.Malformed(path, "missing "+ManifestName, nil)
	}
	manifest, err := ParseManifest(manifestData)
	if err != nil {
		return nil, types.InvalidManifest(path, "parsing "+ManifestName, err)
	}
	pkg.Manifest = manifest
	return pkg, nil
}

// checkHeader applies the safeguards that only need the central directory.
func checkHeader(f *zip.File, limits types.Limits) error {
	if f.Flags&flagEncrypted != 0 {
		return fmt.Errorf("member %q is encrypted", f.Name)
	}
	if f.Method != zip.Store && f.Method != zip.Deflate {
		return fmt.Errorf("member %q uses unsupported compression method %d", f.Name, f.Method)
	}
	size := f.UncompressedSize64
	if size > uint64(limits.MaxMemberSize) {
		return fmt.Errorf("member %q is %d bytes uncompressed, max %d", f.Name, size, limits.MaxMemberSize)
	}
	if size > ratioFloor {
		if f.CompressedSize64 == 0 {
			return fmt.Errorf("member %q declares %d bytes from an empty stream", f.Name, size)
		}
		ratio := float64(size) / float64(f.CompressedSize64)
		if ratio > limits.MaxCompressionRatio {
			return fmt.Errorf("member %q compression ratio %.0f:1 exceeds %.0f:1", f.Name, ratio, limits.MaxCompressionRatio)
		}
	}
	return nil
}

func isTextCandidate(m Member, limits types.Limits) bool {
	if m.IsSymlink() || IsBinaryExt(m.Name) {
		return false
	}
	return m.Size <= limits.MaxTextMemberSize
}

// readMember decompresses f fully, failing if it yields more than limit
// bytes. The zip reader verifies the CRC when the stream is exhausted.
func readMember(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("decompressed size exceeds %d bytes", limit)
	}
	return data, nil
}

// drainMember verifies a member's stream without keeping its content.
func drainMember(f *zip.File, limit int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.Copy(io.Discard, io.LimitReader(rc, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("decompressed size exceeds %d bytes", limit)
	}
	return n, nil
}

// NormalizeNamespace validates a dot-or-slash separated namespace and returns
// its canonical dotted, lower-cased form.
func NormalizeNamespace(ns string) (string, error) {
	if ns == "" {
		return "", fmt.Errorf("empty namespace")
	}
	segments := strings.FieldsFunc(ns, func(r rune) bool { return r == '.' || r == '/' })
	if len(segments) == 0 || len(strings.Split(strings.ReplaceAll(ns, "/", "."), ".")) != len(segments) {
		return "", fmt.Errorf("namespace %q has an empty segment", ns)
	}
	for _, seg := range segments {
		for _, r := range seg {
			if !isNamespaceRune(r) {
				return "", fmt.Errorf("namespace %q contains invalid character %q", ns, r)
			}
		}
	}
	return strings.ToLower(strings.Join(segments, ".")), nil
}

func isNamespaceRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
