// Package github talks to the GitHub release API for managed binaries.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/iii-hq/iii-cli/internal/registry"
)

const defaultBaseURL = "https://api.github.com"

// requestTimeout bounds every API and download request so an
// unreachable network cannot hang a dispatch indefinitely.
const requestTimeout = 30 * time.Second

// ErrRateLimited is returned on HTTP 403 from the release API.
var ErrRateLimited = fmt.Errorf("GitHub API rate limit exceeded. Set GITHUB_TOKEN or III_GITHUB_TOKEN for higher limits")

// NoReleasesError reports that a repository has no published releases.
type NoReleasesError struct {
	Binary string
}

func (e *NoReleasesError) Error() string {
	return fmt.Sprintf("no releases found for %s. This binary may not yet be available for download", e.Binary)
}

// AssetNotFoundError reports that a release has no asset for the
// current platform.
type AssetNotFoundError struct {
	Binary   string
	Platform string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("release asset not found for platform %s: %s", e.Platform, e.Binary)
}

// Release is a GitHub release from the /releases/latest endpoint,
// which inherently excludes pre-releases and drafts.
type Release struct {
	TagName string         `json:"tag_name"`
	Assets  []ReleaseAsset `json:"assets"`
}

// ReleaseAsset is a single downloadable asset within a release.
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Client is a release API client with a fixed identifying user agent,
// bounded timeouts, and optional token authentication.
type Client struct {
	http      *http.Client
	baseURL   string
	token     string
	userAgent string
}

// NewClient builds a client. version is the running build's version,
// used in the User-Agent header. The token is read from
// III_GITHUB_TOKEN (priority) or GITHUB_TOKEN; absence is fine.
func NewClient(version string) *Client {
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   defaultBaseURL,
		token:     TokenFromEnv(),
		userAgent: "iii-cli/" + version,
	}
}

// TokenFromEnv reads the optional API token from the environment.
// The namespaced variable takes priority over the generic one.
func TokenFromEnv() string {
	if tok := os.Getenv("III_GITHUB_TOKEN"); tok != "" {
		return tok
	}
	return os.Getenv("GITHUB_TOKEN")
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// WithToken sets the token when none was found in the environment.
func (c *Client) WithToken(token string) *Client {
	if c.token == "" {
		c.token = token
	}
	return c
}

// Get issues an authenticated GET. Exposed so the installer can reuse
// the client's user agent, token, and timeout for asset downloads.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	return c.http.Do(req)
}

// FetchLatestRelease fetches the latest stable release for a binary.
func (c *Client) FetchLatestRelease(ctx context.Context, spec *registry.BinarySpec) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, spec.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var release Release
		if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
			return nil, fmt.Errorf("failed to decode release response: %w", err)
		}
		return &release, nil
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NoReleasesError{Binary: spec.Name}
	default:
		return nil, fmt.Errorf("GitHub API returned status %d for %s", resp.StatusCode, spec.Repo)
	}
}

// FindAsset returns the first asset with an exactly matching filename,
// or nil when the release has none.
func FindAsset(release *Release, name string) *ReleaseAsset {
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			return &release.Assets[i]
		}
	}
	return nil
}

// ParseReleaseVersion parses a release tag, stripping an optional
// leading "v".
func ParseReleaseVersion(tag string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse version %q: %w", tag, err)
	}
	return v, nil
}
