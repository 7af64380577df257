// Package remote lists repository tags from a GitHub-compatible REST API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/woozymasta/tagpull"
)

const (
	// DefaultBaseURL is the public GitHub REST API root.
	DefaultBaseURL = "https://api.github.com"

	defaultPerPage   = 100
	defaultMaxPages  = 10
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "tagpull"

	// maxBodySize limits a single tags page; 100 tags are a few dozen KB.
	maxBodySize = 8 << 20
)

// HTTPClient is the minimal HTTP capability the Client needs; tests swap it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client lists tags of a single repository.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	apiHost    string
	repo       string
	token      string
	userAgent  string
	format     ArchiveFormat
	perPage    int
	maxPages   int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root, e.g. a GitHub Enterprise "https://ghe.example.com/api/v3".
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSuffix(strings.TrimSpace(base), "/"); base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient sets the HTTP client. Default has a 30s timeout. Nil is ignored.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the Bearer token for the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithPerPage sets the page size (1..100).
func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= 100 {
			c.perPage = n
		}
	}
}

// WithMaxPages caps how many pages ListTags follows.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithArchiveFormat selects which archive URL is reported for each tag.
func WithArchiveFormat(f ArchiveFormat) Option {
	return func(c *Client) {
		if f.Valid() {
			c.format = f
		}
	}
}

// NewClient creates a tag-listing client for repo in "owner/name" form.
func NewClient(repo string, opts ...Option) (*Client, error) {
	repo = strings.Trim(strings.TrimSpace(repo), "/")
	if !validRepo(repo) {
		return nil, tagpull.Errorf(tagpull.KindUsage, "new client", repo, "repository must be in owner/name form")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		repo:       repo,
		userAgent:  defaultUserAgent,
		format:     ArchiveZip,
		perPage:    defaultPerPage,
		maxPages:   defaultMaxPages,
	}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, tagpull.Errorf(tagpull.KindUsage, "new client", c.baseURL, "invalid API base URL")
	}
	c.apiHost = u.Host

	return c, nil
}

// Repo returns the "owner/name" the client was created for.
func (c *Client) Repo() string { return c.repo }

// APIHost returns the host of the API root, the only host the token is sent to.
func (c *Client) APIHost() string { return c.apiHost }

// TagsURL returns the first tags page URL.
func (c *Client) TagsURL() string {
	return fmt.Sprintf("%s/repos/%s/tags?per_page=%d", c.baseURL, c.repo, c.perPage)
}

// ArchiveURL builds the archive download URL of a tag name.
func (c *Client) ArchiveURL(name string) string {
	return fmt.Sprintf("%s/repos/%s/%s/%s", c.baseURL, c.repo, c.format.endpoint(), url.PathEscape(name))
}

// ListTags fetches every tag of the repository, following "next" links.
// An empty list is a valid result. A listing longer than the page cap fails
// instead of returning a partial set.
func (c *Client) ListTags(ctx context.Context) ([]tagpull.Tag, error) {
	var out []tagpull.Tag

	next := c.TagsURL()
	for page := 0; next != "" && page < c.maxPages; page++ {
		batch, link, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}

		out = append(out, batch...)
		next = nextLink(link)
	}

	if next != "" {
		return nil, tagpull.Errorf(tagpull.KindMalformed, "list tags", c.repo,
			"more than %d pages of tags, raise the page limit", c.maxPages)
	}

	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, u string) ([]tagpull.Tag, string, error) {
	const op = "list tags"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", tagpull.Wrap(tagpull.KindUsage, op, u, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	// Link headers may point anywhere; the token only goes to the API host.
	if c.token != "" && strings.EqualFold(req.URL.Host, c.apiHost) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req) // #nosec G107 -- URL is built from config or a server-provided Link header
	if err != nil {
		return nil, "", tagpull.Wrap(tagpull.KindNetwork, op, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &tagpull.Error{
			Kind:   tagpull.KindRemote,
			Op:     op,
			Target: u,
			Status: resp.StatusCode,
			Detail: statusDetail(resp),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, "", tagpull.Wrap(tagpull.KindNetwork, op, u, fmt.Errorf("read body: %w", err))
	}
	if len(data) > maxBodySize {
		return nil, "", tagpull.Errorf(tagpull.KindMalformed, op, u, "response body exceeds %d bytes", maxBodySize)
	}

	tags, err := c.decodeTags(data)
	if err != nil {
		return nil, "", tagpull.Wrap(tagpull.KindMalformed, op, u, err)
	}

	return tags, resp.Header.Get("Link"), nil
}

// tagResponse is a single entry of GET /repos/{owner}/{repo}/tags.
type tagResponse struct {
	Name       string `json:"name"`
	ZipballURL string `json:"zipball_url"`
	TarballURL string `json:"tarball_url"`
	Commit     struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

func (c *Client) decodeTags(data []byte) ([]tagpull.Tag, error) {
	var raw []tagResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	out := make([]tagpull.Tag, 0, len(raw))
	for _, r := range raw {
		if r.Name == "" {
			continue
		}

		archive := r.ZipballURL
		if c.format == ArchiveTarGz {
			archive = r.TarballURL
		}
		if archive == "" {
			archive = c.ArchiveURL(r.Name)
		}

		out = append(out, tagpull.Tag{Name: r.Name, ArchiveURL: archive})
	}

	return out, nil
}

func validRepo(repo string) bool {
	owner, name, ok := strings.Cut(repo, "/")
	return ok && owner != "" && name != "" && !strings.ContainsAny(name, "/ ") && !strings.Contains(owner, " ")
}
