// Package update looks up the latest published vtx-security release.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/mod/semver"
)

// Repo is the GitHub repository releases are published from.
const Repo = "Vtxdeo/vtx-security-cli"

// Result holds the outcome of a release lookup.
type Result struct {
	Latest    string
	Current   string
	UpdateURL string
}

// NeedsUpdate reports whether Latest is a newer release than Current. Builds
// without a semantic version never need an update.
func (r *Result) NeedsUpdate() bool {
	cur, latest := canonical(r.Current), canonical(r.Latest)
	if cur == "" || latest == "" {
		return false
	}
	return semver.Compare(latest, cur) > 0
}

func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	return semver.Canonical(v)
}

type githubRelease struct {
	TagName string `json:"tag_name"`
}

var defaultBaseURL = "https://api.github.com"

// Timeout bounds a single lookup.
const Timeout = 2 * time.Second

// CheckLatest queries the GitHub Releases API for the latest release of
// Repo. It returns nil for development builds and on any lookup failure.
func CheckLatest(ctx context.Context, currentVersion string) *Result {
	if canonical(currentVersion) == "" {
		return nil
	}
	return checkLatestWithBase(ctx, defaultBaseURL, currentVersion)
}

func checkLatestWithBase(ctx context.Context, baseURL, currentVersion string) *Result {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/repos/%s/releases/latest", baseURL, Repo), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil
	}
	if canonical(release.TagName) == "" {
		return nil
	}

	return &Result{
		Latest:    release.TagName,
		Current:   currentVersion,
		UpdateURL: fmt.Sprintf("go install github.com/%s/cmd/vtx-security@latest", Repo),
	}
}
