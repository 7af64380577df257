package install

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/woozymasta/tagpull"
)

// Format is the container format of a downloaded archive.
type Format string

const (
	// FormatZip is a zip archive (GitHub "zipball").
	FormatZip Format = "zip"
	// FormatTarGz is a gzip-compressed tar archive (GitHub "tarball").
	FormatTarGz Format = "tar.gz"
)

var (
	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magicGzip     = []byte{0x1f, 0x8b}
)

// maxLinkSize bounds a zip symlink entry, whose body is the link target.
const maxLinkSize = 4 << 10

// DetectFormat identifies an archive by its leading bytes.
func DetectFormat(head []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(head, magicZip), bytes.HasPrefix(head, magicZipEmpty):
		return FormatZip, true
	case bytes.HasPrefix(head, magicGzip):
		return FormatTarGz, true
	default:
		return "", false
	}
}

func sniff(path string) (Format, error) {
	const op = "check archive"

	f, err := os.Open(path) // #nosec G304 -- path is our own temp file
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindFilesystem, op, path, err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", tagpull.Wrap(tagpull.KindFilesystem, op, path, err)
	}

	format, ok := DetectFormat(head[:n])
	if !ok {
		return "", tagpull.Errorf(tagpull.KindCorruptArchive, op, "", "unrecognized archive signature % x", head[:n])
	}

	return format, nil
}

type entryKind uint8

const (
	entryFile entryKind = iota
	entryDir
	entrySymlink
)

// entry is a single archive member. open is valid only during the walk
// callback that received it.
type entry struct {
	open func() (io.ReadCloser, error)
	name string
	link string
	mode fs.FileMode
	kind entryKind
}

type walkFunc func(path string, fn func(entry) error) error

func walkerFor(f Format) walkFunc {
	if f == FormatTarGz {
		return walkTarGz
	}

	return walkZip
}

func walkZip(path string, fn func(entry) error) error {
	const op = "read zip"

	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			if zr != nil {
				_ = zr.Close()
			}
			return tagpull.Wrap(tagpull.KindFilesystem, op, "", err)
		}
		return tagpull.Wrap(tagpull.KindCorruptArchive, op, "", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		mode := f.Mode()
		e := entry{name: f.Name, mode: mode, open: f.Open}

		switch {
		case mode.IsDir():
			e.kind = entryDir
		case mode&fs.ModeSymlink != 0:
			e.kind = entrySymlink
			if e.link, err = readZipLink(f); err != nil {
				return err
			}
		case mode.IsRegular():
			e.kind = entryFile
		default:
			return tagpull.Errorf(tagpull.KindCorruptArchive, op, f.Name, "unsupported entry mode %s", mode)
		}

		if err := fn(e); err != nil {
			return err
		}
	}

	return nil
}

func readZipLink(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindCorruptArchive, "read zip", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxLinkSize+1))
	if err != nil {
		return "", tagpull.Wrap(tagpull.KindCorruptArchive, "read zip", f.Name, err)
	}
	if len(data) > maxLinkSize {
		return "", tagpull.Errorf(tagpull.KindCorruptArchive, "read zip", f.Name, "symlink target too long")
	}

	return string(data), nil
}

func walkTarGz(path string, fn func(entry) error) error {
	const op = "read tar.gz"

	file, err := os.Open(path) // #nosec G304 -- path is our own temp file
	if err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, op, path, err)
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return tagpull.Wrap(tagpull.KindCorruptArchive, op, "", fmt.Errorf("gzip reader: %w", err))
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	open := func() (io.ReadCloser, error) { return io.NopCloser(tr), nil }

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if errors.Is(err, tar.ErrInsecurePath) {
				return tagpull.Wrap(tagpull.KindFilesystem, op, hdr.Name, err)
			}
			return tagpull.Wrap(tagpull.KindCorruptArchive, op, "", err)
		}

		e := entry{name: hdr.Name, mode: hdr.FileInfo().Mode(), open: open}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader:
			// GitHub tarballs carry the commit id here.
			continue
		case tar.TypeDir:
			e.kind = entryDir
		case tar.TypeReg:
			e.kind = entryFile
		case tar.TypeSymlink:
			e.kind = entrySymlink
			e.link = hdr.Linkname
		default:
			return tagpull.Errorf(tagpull.KindCorruptArchive, op, hdr.Name, "unsupported entry type %q", hdr.Typeflag)
		}

		if err := fn(e); err != nil {
			return err
		}
	}
}
