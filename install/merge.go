package install

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/tagpull"
)

// merge moves the staged tree into dest. Existing files are replaced and
// files not present in the archive are kept.
func merge(staging, dest string) error {
	const op = "merge"

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, op, dest, err)
	}

	return filepath.WalkDir(staging, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, op, p, err)
		}

		rel, err := filepath.Rel(staging, p)
		if err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, op, p, err)
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(dest, rel)
		info, statErr := os.Lstat(target)
		exists := statErr == nil

		if d.IsDir() {
			if exists && !info.IsDir() {
				if err := os.Remove(target); err != nil {
					return tagpull.Wrap(tagpull.KindFilesystem, op, target, err)
				}
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return tagpull.Wrap(tagpull.KindFilesystem, op, target, err)
			}
			return nil
		}

		if exists && info.IsDir() {
			if err := os.RemoveAll(target); err != nil {
				return tagpull.Wrap(tagpull.KindFilesystem, op, target, err)
			}
		}
		if err := os.Rename(p, target); err != nil {
			return tagpull.Wrap(tagpull.KindFilesystem, op, target, err)
		}

		return nil
	})
}

func validStampName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// Stamp records which release was installed into a directory.
type Stamp struct {
	InstalledAt time.Time `yaml:"installed_at"`
	Tag         string    `yaml:"tag"`
	ArchiveURL  string    `yaml:"archive_url"`
	Format      Format    `yaml:"format"`
}

func writeStamp(dest, name string, st Stamp) error {
	p := filepath.Join(dest, name)

	data, err := yaml.Marshal(st)
	if err != nil {
		return tagpull.Wrap(tagpull.KindFilesystem, "write stamp", p, err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil { // #nosec G306 -- stamp is not secret
		return tagpull.Wrap(tagpull.KindFilesystem, "write stamp", p, err)
	}

	return nil
}

// ReadStamp returns the record written by WithStamp in dest. A missing
// stamp yields the zero Stamp.
func ReadStamp(dest, name string) (Stamp, error) {
	if !validStampName(name) {
		return Stamp{}, tagpull.Errorf(tagpull.KindUsage, "read stamp", name, "stamp must be a plain file name")
	}

	p := filepath.Join(dest, name)
	data, err := os.ReadFile(p) // #nosec G304 -- stamp name validated above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stamp{}, nil
		}
		return Stamp{}, tagpull.Wrap(tagpull.KindFilesystem, "read stamp", p, err)
	}

	var st Stamp
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Stamp{}, tagpull.Wrap(tagpull.KindMalformed, "read stamp", p, err)
	}

	return st, nil
}
