package install

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/woozymasta/tagpull"
)

// extract unpacks archive into root, stripping a single wrapper directory
// when every entry lives under it. It returns the sorted installed paths.
func extract(format Format, archive, root string) ([]string, bool, error) {
	walk := walkerFor(format)

	var listed []entry
	err := walk(archive, func(e entry) error {
		name, err := cleanName(e.name)
		if err != nil {
			return err
		}
		if name != "" {
			listed = append(listed, entry{name: name, kind: e.kind})
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	top := wrapperDir(listed)

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, false, tagpull.Wrap(tagpull.KindFilesystem, "extract", root, err)
	}

	x := extractor{root: realRoot, top: top}
	if err := walk(archive, x.write); err != nil {
		return nil, false, err
	}

	// A later entry can turn a component of an earlier link into a symlink,
	// so links are checked again against the finished tree.
	for _, l := range x.links {
		if err := x.checkLink(l.path, l.name); err != nil {
			return nil, false, err
		}
	}

	slices.Sort(x.files)
	return slices.Compact(x.files), top != "", nil
}

// cleanName normalizes an archive member name to a relative slash path.
// Absolute names and ".." components are rejected.
func cleanName(raw string) (string, error) {
	name := strings.ReplaceAll(raw, `\`, "/")

	if strings.HasPrefix(name, "/") || (len(name) >= 2 && name[1] == ':') {
		return "", tagpull.Errorf(tagpull.KindFilesystem, "extract", raw, "absolute path in archive")
	}

	for _, el := range strings.Split(name, "/") {
		if el == ".." {
			return "", tagpull.Errorf(tagpull.KindFilesystem, "extract", raw, "parent reference in archive path")
		}
	}

	name = path.Clean(name)
	if name == "." {
		return "", nil
	}

	return name, nil
}

// wrapperDir returns the directory shared by every entry, or "" when the
// archive has top-level files or more than one top-level directory.
func wrapperDir(listed []entry) string {
	top := ""
	for _, e := range listed {
		first, _, nested := strings.Cut(e.name, "/")
		if !nested && e.kind != entryDir {
			return ""
		}

		if top == "" {
			top = first
		} else if first != top {
			return ""
		}
	}

	return top
}

type extractor struct {
	root  string
	top   string
	files []string
	links []writtenLink
}

type writtenLink struct {
	path string
	name string
}

func (x *extractor) write(e entry) error {
	name, err := cleanName(e.name)
	if err != nil {
		return err
	}

	if x.top != "" {
		if name == x.top {
			return nil
		}
		name = strings.TrimPrefix(name, x.top+"/")
	}
	if name == "" {
		return nil
	}

	target := filepath.Join(x.root, filepath.FromSlash(name))
	if err := ensureWithinRoot(x.root, target, e.name); err != nil {
		return err
	}

	switch e.kind {
	case entryDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, "mkdir", target, err)
		}
		return x.checkParent(target, e.name)
	case entrySymlink:
		if err := x.writeSymlink(target, e); err != nil {
			return err
		}
	default:
		if err := x.writeFile(target, e); err != nil {
			return err
		}
	}

	x.files = append(x.files, name)
	return nil
}

func (x *extractor) writeFile(target string, e entry) error {
	if err := x.prepare(target, e.name); err != nil {
		return err
	}

	perm := e.mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	src, err := e.open()
	if err != nil {
		return tagpull.Wrap(tagpull.KindCorruptArchive, "extract", e.name, err)
	}
	defer func() { _ = src.Close() }()

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- target checked by ensureWithinRoot
	if err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "create file", target, err)
	}

	w := &trackingWriter{w: f}
	_, err = io.Copy(w, src)
	closeErr := f.Close()

	switch {
	case err != nil && w.err != nil:
		return tagpull.Wrap(tagpull.KindFilesystem, "write file", target, w.err)
	case err != nil:
		return tagpull.Wrap(tagpull.KindCorruptArchive, "extract", e.name, err)
	case closeErr != nil:
		return tagpull.Wrap(tagpull.KindFilesystem, "write file", target, closeErr)
	}

	return nil
}

func (x *extractor) writeSymlink(target string, e entry) error {
	link := filepath.FromSlash(e.link)
	if link == "" {
		return tagpull.Errorf(tagpull.KindCorruptArchive, "extract", e.name, "empty symlink target")
	}
	if filepath.IsAbs(link) {
		return tagpull.Errorf(tagpull.KindFilesystem, "extract", e.name, "symlink to absolute path %q", e.link)
	}
	if err := x.prepare(target, e.name); err != nil {
		return err
	}

	if err := os.Symlink(link, target); err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "symlink", target, err)
	}
	if err := x.checkLink(target, e.name); err != nil {
		return err
	}

	x.links = append(x.links, writtenLink{path: target, name: e.name})
	return nil
}

// maxLinkHops bounds symlink expansion the way the kernel does (ELOOP).
const maxLinkHops = 40

// checkLink resolves the symlink at p one component at a time against the
// tree written so far and fails when any step leaves root. Missing
// components are taken literally.
func (x *extractor) checkLink(p, name string) error {
	rel, err := filepath.Rel(x.root, p)
	if err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "extract", name, err)
	}

	pending := splitPath(rel)
	cur := x.root
	hops := 0

	for len(pending) > 0 {
		el := pending[0]
		pending = pending[1:]

		switch el {
		case "", ".":
			continue
		case "..":
			if cur == x.root {
				return tagpull.Errorf(tagpull.KindFilesystem, "extract", name, "symlink resolves outside destination")
			}
			cur = filepath.Dir(cur)
			continue
		}

		next := filepath.Join(cur, el)
		info, err := os.Lstat(next)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			cur = next
			continue
		}

		hops++
		if hops > maxLinkHops {
			return tagpull.Errorf(tagpull.KindFilesystem, "extract", name, "too many levels of symbolic links")
		}

		dest, err := os.Readlink(next)
		if err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, "readlink", next, err)
		}
		if filepath.IsAbs(dest) {
			return tagpull.Errorf(tagpull.KindFilesystem, "extract", name, "symlink resolves to absolute path %q", dest)
		}

		pending = append(splitPath(dest), pending...)
	}

	return nil
}

func splitPath(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}

// prepare creates the parent of target and removes a previous entry of the
// same name so writes never follow a symlink.
func (x *extractor) prepare(target, name string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "mkdir", dir, err)
	}
	if err := x.checkParent(dir, name); err != nil {
		return err
	}

	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			err = os.RemoveAll(target)
		} else {
			err = os.Remove(target)
		}
		if err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, "replace", target, err)
		}
	}

	return nil
}

// checkParent resolves symlinks in dir and verifies it stays inside root.
func (x *extractor) checkParent(dir, name string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "resolve", dir, err)
	}

	return ensureWithinRoot(x.root, resolved, name)
}

func ensureWithinRoot(root, target, name string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return tagpull.Errorf(tagpull.KindFilesystem, "extract", name, "path escapes destination")
	}

	return nil
}
