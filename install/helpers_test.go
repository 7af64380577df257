package install

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name string
	body string
	link string
	mode fs.FileMode
	dir  bool
}

func buildZip(t *testing.T, entries ...testEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		body := e.body

		switch {
		case e.dir:
			if !strings.HasSuffix(hdr.Name, "/") {
				hdr.Name += "/"
			}
			hdr.SetMode(fs.ModeDir | 0o755)
		case e.link != "":
			hdr.SetMode(fs.ModeSymlink | 0o777)
			body = e.link
		default:
			mode := e.mode
			if mode == 0 {
				mode = 0o644
			}
			hdr.SetMode(mode)
		}

		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if !e.dir {
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries ...testEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		Name:       "pax_global_header",
		PAXRecords: map[string]string{"comment": "5f0c6e1d2a"},
	}))

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644}

		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			if !strings.HasSuffix(hdr.Name, "/") {
				hdr.Name += "/"
			}
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
			hdr.Mode = 0o777
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
			if e.mode != 0 {
				hdr.Mode = int64(e.mode)
			}
		}

		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// wrapped is a typical GitHub zipball layout.
func wrapped() []testEntry {
	return []testEntry{
		{name: "acme-kit-5f0c6e1/", dir: true},
		{name: "acme-kit-5f0c6e1/README.md", body: "# kit\n"},
		{name: "acme-kit-5f0c6e1/templates/", dir: true},
		{name: "acme-kit-5f0c6e1/templates/spec.md", body: "spec template\n"},
		{name: "acme-kit-5f0c6e1/scripts/setup.sh", body: "#!/bin/sh\n", mode: 0o755},
	}
}

// archiveHost serves a fixed archive body and records requested paths.
type archiveHost struct {
	body   []byte
	paths  []string
	auth   []string
	status int
	mu     sync.Mutex
}

func (h *archiveHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.paths = append(h.paths, r.URL.Path)
	h.auth = append(h.auth, r.Header.Get("Authorization"))
	h.mu.Unlock()

	if h.status != 0 {
		w.WriteHeader(h.status)
	}
	_, _ = w.Write(h.body)
}

func (h *archiveHost) requested() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.paths...)
}

func (h *archiveHost) authorizations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.auth...)
}

func serveArchive(t *testing.T, host *archiveHost) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(host)
	t.Cleanup(srv.Close)

	return srv
}

func newTestInstaller(t *testing.T, srv *httptest.Server, opts ...Option) *Installer {
	t.Helper()

	return New(append([]Option{WithHTTPClient(srv.Client()), WithTempDir(t.TempDir())}, opts...)...)
}

// readTree maps slash-separated relative paths of regular files to content.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)

	return out
}
