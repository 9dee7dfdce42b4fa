// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultBaseURL is the archive host.
	DefaultBaseURL = "https://github.com"
	// DefaultOwner is the template repository owner.
	DefaultOwner = "dasien"
	// DefaultRepo is the template repository name.
	DefaultRepo = "ClaudeMultiAgentTemplate"
	// DefaultRef is the branch whose snapshot is installed.
	DefaultRef = "main"

	// DefaultDownloadTimeout bounds the whole request, body included.
	DefaultDownloadTimeout = 60 * time.Second

	// DefaultMaxArchiveBytes caps the downloaded archive size (200 MB).
	DefaultMaxArchiveBytes int64 = 200 << 20
)

type (
	// ArchiveFetcher downloads the template archive from a codeload-style
	// endpoint. It makes exactly one attempt per Download call.
	ArchiveFetcher struct {
		httpClient *http.Client
		baseURL    string // Archive host (default: "https://github.com", overridable for tests)
		owner      string
		repo       string
		ref        string // Branch name or semver tag
		token      string // Optional GITHUB_TOKEN, only sent to GitHub hosts
		userAgent  string
		maxBytes   int64
	}

	// FetcherOption configures an ArchiveFetcher during construction.
	FetcherOption func(*ArchiveFetcher)
)

// WithHTTPClient sets a custom HTTP client. Tests pass the client of an
// httptest TLS server so certificate validation stays enabled.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.httpClient = c
	}
}

// WithBaseURL overrides the archive host, primarily for test servers.
func WithBaseURL(base string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRepo overrides the template repository owner and name.
func WithRepo(owner, repo string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.owner = owner
		f.repo = repo
	}
}

// WithRef selects the branch or tag to download.
func WithRef(ref string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.ref = ref
	}
}

// WithToken sets a GitHub token for authenticated requests. The token is only
// attached when the archive URL targets github.com or one of its subdomains.
func WithToken(token string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with the request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.userAgent = ua
	}
}

// WithMaxArchiveBytes caps the number of bytes accepted from the server.
func WithMaxArchiveBytes(n int64) FetcherOption {
	return func(f *ArchiveFetcher) {
		f.maxBytes = n
	}
}

// NewArchiveFetcher creates an ArchiveFetcher with sensible defaults. The
// default HTTP client enforces TLS 1.2+ with certificate verification and a
// 60 second timeout.
func NewArchiveFetcher(opts ...FetcherOption) *ArchiveFetcher {
	f := &ArchiveFetcher{
		baseURL:   DefaultBaseURL,
		owner:     DefaultOwner,
		repo:      DefaultRepo,
		ref:       DefaultRef,
		userAgent: "cmat-installer/dev",
		maxBytes:  DefaultMaxArchiveBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.baseURL == "" {
		f.baseURL = DefaultBaseURL
	}
	if f.owner == "" || f.repo == "" {
		f.owner, f.repo = DefaultOwner, DefaultRepo
	}
	if f.ref == "" {
		f.ref = DefaultRef
	}
	if f.httpClient == nil {
		f.httpClient = NewHTTPClient(DefaultDownloadTimeout)
	}
	return f
}

// NewHTTPClient returns an http.Client that always verifies server
// certificates and refuses TLS versions below 1.2.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ArchiveURL returns the codeload URL for the configured ref. Semver tags use
// the refs/tags form, anything else is treated as a branch.
func (f *ArchiveFetcher) ArchiveURL() string {
	kind := "heads"
	if semver.IsValid(f.ref) {
		kind = "tags"
	}
	return fmt.Sprintf("%s/%s/%s/archive/refs/%s/%s.zip",
		f.baseURL, url.PathEscape(f.owner), url.PathEscape(f.repo), kind, escapeRef(f.ref))
}

// Download streams the archive into a new temporary file in dir and returns
// its path. Every failure is reported as a *NetworkError; the partially
// written file is removed. There is no retry.
func (f *ArchiveFetcher) Download(ctx context.Context, dir string) (_ string, err error) {
	archiveURL := f.ArchiveURL()
	redacted := redactURL(archiveURL)

	parsed, err := url.Parse(archiveURL)
	if err != nil {
		return "", &NetworkError{URL: redacted, Err: fmt.Errorf("parsing archive URL: %w", err)}
	}
	if parsed.Scheme != "https" {
		return "", &NetworkError{URL: redacted, Err: fmt.Errorf("refusing non-https archive URL (scheme %q)", parsed.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, http.NoBody)
	if err != nil {
		return "", &NetworkError{URL: redacted, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/zip")
	req.Header.Set("User-Agent", f.userAgent)
	// Mirrors and test hosts never see the token. net/http also drops
	// Authorization when the codeload redirect leaves the original domain.
	if f.token != "" && isGitHubHost(parsed) {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{URL: redacted, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &NetworkError{URL: redacted, StatusCode: resp.StatusCode}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return "", &NetworkError{URL: redacted, StatusCode: resp.StatusCode, Err: ErrArchiveTooLarge}
	}

	tmp, err := os.CreateTemp(dir, "cmat-archive-*.zip")
	if err != nil {
		return "", &NetworkError{URL: redacted, Err: fmt.Errorf("creating temp file: %w", err)}
	}
	keep := false
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = &NetworkError{URL: redacted, Err: fmt.Errorf("closing temp file: %w", closeErr)}
		}
		if !keep || err != nil {
			// Best-effort removal of partially written temp file.
			_ = os.Remove(tmp.Name())
		}
	}()

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		// Read one byte past the cap so an oversized body is detectable.
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		return "", &NetworkError{URL: redacted, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if f.maxBytes > 0 && n > f.maxBytes {
		return "", &NetworkError{URL: redacted, StatusCode: resp.StatusCode, Err: ErrArchiveTooLarge}
	}

	keep = true
	return tmp.Name(), nil
}

// isGitHubHost reports whether u targets github.com or a subdomain of it
// (codeload.github.com, api.github.com).
func isGitHubHost(u *url.URL) bool {
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	return host == "github.com" || strings.HasSuffix(host, ".github.com")
}

// escapeRef escapes each segment of a ref such as "feature/x" while keeping
// the separators.
func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// redactURL strips query parameters and fragments from a URL for safe inclusion
// in error messages, preventing accidental exposure of tokens or sensitive data.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}

// IsTimeout reports whether a NetworkError was caused by a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
