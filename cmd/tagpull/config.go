package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woozymasta/tagpull"
	"github.com/woozymasta/tagpull/remote"
)

// FileConfig is the optional YAML config. Empty fields fall through to
// built-in defaults; flags and environment override it.
type FileConfig struct {
	Stable        *bool         `yaml:"stable"`
	SkipCurrent   *bool         `yaml:"skip_current"`
	Repo          string        `yaml:"repo"`
	Prefix        string        `yaml:"prefix"`
	Dest          string        `yaml:"dest"`
	APIURL        string        `yaml:"api_url"`
	Token         string        `yaml:"token"`
	ArchiveFormat string        `yaml:"archive_format"`
	Malformed     string        `yaml:"malformed"`
	Format        string        `yaml:"format"`
	Include       string        `yaml:"include"`
	Exclude       string        `yaml:"exclude"`
	Tag           string        `yaml:"tag"`
	Stamp         string        `yaml:"stamp"`
	Timeout       time.Duration `yaml:"timeout"`
	PerPage       int           `yaml:"per_page"`
	MaxPages      int           `yaml:"max_pages"`
}

// Load reads a YAML config file. An empty path yields an empty config.
func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path is user-provided by design
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config YAML: %w", err)
	}

	return cfg, nil
}

// settings are the effective values after merging flags, config and defaults.
type settings struct {
	resolve     tagpull.Options
	repo        string
	dest        string
	apiURL      string
	token       string
	tag         string
	stamp       string
	format      remote.ArchiveFormat
	timeout     time.Duration
	perPage     int
	maxPages    int
	list        bool
	dryRun      bool
	skipCurrent bool
}

const (
	defaultDest    = "."
	defaultTimeout = 10 * time.Minute
)

// first returns the first non-blank value.
func first(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}

	return ""
}

// literal returns the first non-empty value as is; prefixes are matched
// byte for byte, whitespace included.
func literal(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}

	return 0
}

func flagOrConfig(flag bool, cfg *bool) bool {
	if flag {
		return true
	}

	return cfg != nil && *cfg
}

// merge applies flag/env > config file > defaults and validates the result.
func merge(opt Options, cfg FileConfig) (settings, error) {
	usage := func(format string, args ...any) (settings, error) {
		return settings{}, tagpull.Errorf(tagpull.KindUsage, "configure", "", format, args...)
	}

	s := settings{
		repo:     first(opt.Source.Repo, cfg.Repo),
		dest:     first(opt.Install.Dest, cfg.Dest, defaultDest),
		apiURL:   first(opt.Source.APIURL, cfg.APIURL, remote.DefaultBaseURL),
		token:    first(opt.Source.Token, cfg.Token),
		tag:      first(opt.Select.Tag, cfg.Tag),
		stamp:    first(opt.Install.Stamp, cfg.Stamp),
		timeout:  defaultTimeout,
		perPage:  firstInt(opt.Source.PerPage, cfg.PerPage),
		maxPages: firstInt(opt.Source.MaxPages, cfg.MaxPages),
		list:     opt.Output.List,
		dryRun:   opt.Output.DryRun,

		skipCurrent: flagOrConfig(opt.Install.SkipCurrent, cfg.SkipCurrent),
	}

	if opt.Source.Timeout > 0 {
		s.timeout = opt.Source.Timeout
	} else if cfg.Timeout > 0 {
		s.timeout = cfg.Timeout
	}

	if s.repo == "" {
		return usage("repository is required (--repo, TAGPULL_REPO or repo in config)")
	}
	if s.skipCurrent && s.stamp == "" {
		return usage("--skip-current needs --stamp")
	}

	format, ok := remote.ParseArchiveFormat(first(opt.Install.ArchiveFormat, cfg.ArchiveFormat))
	if !ok {
		return usage("unknown archive format %q", first(opt.Install.ArchiveFormat, cfg.ArchiveFormat))
	}
	s.format = format

	malformed, ok := tagpull.ParseMalformed(first(opt.Select.Malformed, cfg.Malformed))
	if !ok {
		return usage("unknown malformed policy %q", first(opt.Select.Malformed, cfg.Malformed))
	}

	forms, ok := tagpull.ParseFormat(first(opt.Select.Format, cfg.Format))
	if !ok {
		return usage("unknown version format %q", first(opt.Select.Format, cfg.Format))
	}

	s.resolve = tagpull.Options{
		Prefix:    literal(opt.Select.Prefix, cfg.Prefix, tagpull.DefaultPrefix),
		Malformed: malformed,
		Format:    forms,
		Stable:    flagOrConfig(opt.Select.Stable, cfg.Stable),
		Limit:     opt.Output.Limit,
	}

	var err error
	if s.resolve.Include, err = compile(first(opt.Select.Include, cfg.Include)); err != nil {
		return usage("include regexp: %v", err)
	}
	if s.resolve.Exclude, err = compile(first(opt.Select.Exclude, cfg.Exclude)); err != nil {
		return usage("exclude regexp: %v", err)
	}

	return s, nil
}

func compile(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}

	return regexp.Compile(expr)
}
