// Package install downloads a resolved release archive and unpacks it into a
// destination directory.
//
// Extraction is all-or-nothing: the archive is unpacked into a staging
// directory next to the destination and merged only after every entry was
// written. A single top-level wrapper directory, as produced by GitHub
// zipballs and tarballs ("owner-repo-sha/"), is stripped.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/woozymasta/tagpull"
)

const (
	// DefaultMaxSize caps the downloaded archive size.
	DefaultMaxSize int64 = 512 << 20

	defaultTimeout   = 5 * time.Minute
	defaultUserAgent = "tagpull"
	defaultTokenHost = "api.github.com"
)

// HTTPClient is the minimal HTTP capability the Installer needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProgressFunc reports downloaded bytes; total is -1 when unknown.
type ProgressFunc func(downloaded, total int64)

// Result describes a completed installation.
type Result struct {
	// Path is the absolute destination directory.
	Path string `json:"path" yaml:"path"`

	// Tag is the installed tag name.
	Tag string `json:"tag" yaml:"tag"`

	// Format is the detected archive format.
	Format Format `json:"format" yaml:"format"`

	// Files lists installed files and symlinks relative to Path, slash
	// separated and sorted. Directories are not listed.
	Files []string `json:"files" yaml:"files"`

	// Stripped is true when a wrapper directory was removed.
	Stripped bool `json:"stripped" yaml:"stripped"`
}

// Installer fetches and unpacks release archives.
type Installer struct {
	httpClient HTTPClient
	progress   ProgressFunc
	now        func() time.Time
	token      string
	tokenHosts []string
	userAgent  string
	stamp      string
	tempDir    string
	maxSize    int64
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient sets the HTTP client. Default has a 5m timeout. Nil is ignored.
func WithHTTPClient(h HTTPClient) Option {
	return func(i *Installer) {
		if h != nil {
			i.httpClient = h
		}
	}
}

// WithMaxSize caps the archive size in bytes.
func WithMaxSize(n int64) Option {
	return func(i *Installer) {
		if n > 0 {
			i.maxSize = n
		}
	}
}

// WithProgressFunc registers a download progress callback.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(i *Installer) {
		i.progress = fn
	}
}

// WithToken sets the Bearer token sent with the archive request. The token
// is attached only when the archive URL host is one of hosts, or
// api.github.com when none are given.
func WithToken(token string, hosts ...string) Option {
	return func(i *Installer) {
		i.token = strings.TrimSpace(token)
		i.tokenHosts = hosts
		if len(i.tokenHosts) == 0 {
			i.tokenHosts = []string{defaultTokenHost}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(i *Installer) {
		if ua != "" {
			i.userAgent = ua
		}
	}
}

// WithStamp writes a YAML Stamp into dest/name after a successful install.
// Name must be a plain file name.
func WithStamp(name string) Option {
	return func(i *Installer) {
		i.stamp = strings.TrimSpace(name)
	}
}

// WithTempDir sets where the downloaded archive is spooled. Default is os.TempDir.
func WithTempDir(dir string) Option {
	return func(i *Installer) {
		i.tempDir = dir
	}
}

// New creates an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  defaultUserAgent,
		maxSize:    DefaultMaxSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Install downloads and unpacks the tag selected by release. A resolution
// that is not found is a usage error.
func (i *Installer) Install(ctx context.Context, release tagpull.Resolution, dest string) (Result, error) {
	switch {
	case release.Found():
		return i.InstallTag(ctx, release.Tag, dest)
	case release.Failed():
		return Result{}, tagpull.Wrap(tagpull.KindUsage, "install", dest, fmt.Errorf("resolution failed: %w", release.Err))
	default:
		return Result{}, tagpull.Errorf(tagpull.KindUsage, "install", dest, "nothing to install: resolution is %s", release.Status)
	}
}

// InstallTag downloads tag.ArchiveURL and unpacks it into dest, overwriting
// files that already exist. On failure dest is left as it was.
func (i *Installer) InstallTag(ctx context.Context, tag tagpull.Tag, dest string) (Result, error) {
	const op = "install"

	if strings.TrimSpace(tag.ArchiveURL) == "" {
		return Result{}, tagpull.Errorf(tagpull.KindUsage, op, tag.Name, "tag has no archive URL")
	}
	if strings.TrimSpace(dest) == "" {
		return Result{}, tagpull.Errorf(tagpull.KindUsage, op, tag.Name, "empty destination")
	}
	if i.stamp != "" && !validStampName(i.stamp) {
		return Result{}, tagpull.Errorf(tagpull.KindUsage, op, i.stamp, "stamp must be a plain file name")
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return Result{}, tagpull.Wrap(tagpull.KindFilesystem, op, dest, err)
	}

	archive, err := i.download(ctx, tag.ArchiveURL)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = os.Remove(archive) }()

	format, err := sniff(archive)
	if err != nil {
		return Result{}, err
	}

	parent := filepath.Dir(abs)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Result{}, tagpull.Wrap(tagpull.KindFilesystem, "prepare parent dir", parent, err)
	}

	staging, err := os.MkdirTemp(parent, ".tagpull-*")
	if err != nil {
		return Result{}, tagpull.Wrap(tagpull.KindFilesystem, "create staging dir", parent, err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	files, stripped, err := extract(format, archive, staging)
	if err != nil {
		return Result{}, err
	}

	if err := merge(staging, abs); err != nil {
		return Result{}, err
	}

	if i.stamp != "" {
		st := Stamp{
			Tag:         tag.Name,
			ArchiveURL:  tag.ArchiveURL,
			Format:      format,
			InstalledAt: i.now().UTC(),
		}
		if err := writeStamp(abs, i.stamp, st); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Path:     abs,
		Tag:      tag.Name,
		Format:   format,
		Files:    files,
		Stripped: stripped,
	}, nil
}

// download spools the archive into a temp file and returns its path.
func (i *Installer) download(ctx context.Context, u string) (string, error) {
	const op = "download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindUsage, op, u, err)
	}
	req.Header.Set("User-Agent", i.userAgent)
	if i.token != "" && i.trusted(req.URL.Host) {
		req.Header.Set("Authorization", "Bearer "+i.token)
	}

	resp, err := i.httpClient.Do(req) // #nosec G107 -- archive URL comes from the tag listing
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindNetwork, op, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &tagpull.Error{
			Kind:   tagpull.KindRemote,
			Op:     op,
			Target: u,
			Status: resp.StatusCode,
			Detail: resp.Status,
		}
	}

	f, err := os.CreateTemp(i.tempDir, "tagpull-*.archive")
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindFilesystem, op, i.tempDir, fmt.Errorf("temp file: %w", err))
	}
	path := f.Name()

	fail := func(e error) (string, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return "", e
	}

	var body io.Reader = io.LimitReader(resp.Body, i.maxSize+1)
	if i.progress != nil {
		body = &progressReader{r: body, total: resp.ContentLength, report: i.progress}
	}

	w := &trackingWriter{w: f}
	n, err := io.Copy(w, body)
	if err != nil {
		if w.err != nil {
			return fail(tagpull.Wrap(tagpull.KindFilesystem, op, path, fmt.Errorf("write archive: %w", w.err)))
		}
		return fail(tagpull.Wrap(tagpull.KindNetwork, op, u, fmt.Errorf("read body: %w", err)))
	}
	if n > i.maxSize {
		return fail(tagpull.Errorf(tagpull.KindCorruptArchive, op, u, "archive exceeds %d bytes", i.maxSize))
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", tagpull.Wrap(tagpull.KindFilesystem, op, path, err)
	}

	return path, nil
}

func (i *Installer) trusted(host string) bool {
	return slices.ContainsFunc(i.tokenHosts, func(h string) bool {
		return strings.EqualFold(h, host)
	})
}

type progressReader struct {
	r      io.Reader
	report ProgressFunc
	total  int64
	read   int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}

// trackingWriter remembers write failures so copy errors can be attributed
// to the destination rather than the source.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
