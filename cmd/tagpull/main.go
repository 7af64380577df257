/*
Package main is the tagpull cli tool.
It finds the newest "templates-v" release tag of a GitHub repository and
installs its source archive into a local directory.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/woozymasta/tagpull"
	"github.com/woozymasta/tagpull/install"
	"github.com/woozymasta/tagpull/remote"
)

type Options struct {
	// betteralign:ignore

	// Where tags come from
	Source OptionsSource `group:"Source"`
	// Which tag is picked
	Select OptionsSelect `group:"Selection"`
	// Where it lands
	Install OptionsInstall `group:"Install"`
	// What gets printed
	Output OptionsOutput `group:"Output"`

	Config  string `short:"c" long:"config"  env:"TAGPULL_CONFIG" description:"YAML config file"`
	Version bool   `long:"version" description:"Print version and exit"`
}

type OptionsSource struct {
	Repo     string        `short:"r" long:"repo"      env:"TAGPULL_REPO"    description:"Repository in owner/name form"`
	APIURL   string        `long:"api-url" env:"TAGPULL_API_URL" description:"API root (default https://api.github.com)"`
	Token    string        `long:"token" env:"GITHUB_TOKEN" description:"API token sent as Bearer"`
	Timeout  time.Duration `long:"timeout" env:"TAGPULL_TIMEOUT" description:"Overall deadline (default 10m)"`
	PerPage  int           `long:"per-page" description:"Tags per page, 1..100 (default 100)"`
	MaxPages int           `long:"max-pages" description:"Max tag pages to follow (default 10)"`
}

type OptionsSelect struct {
	Prefix    string `short:"p" long:"prefix"    env:"TAGPULL_PREFIX" description:"Tag prefix (default templates-v)"`
	Tag       string `short:"t" long:"tag"                            description:"Install this exact tag instead of the newest"`
	Malformed string `long:"malformed" description:"Prefix-matching tags with a broken version" choice:"skip" choice:"last" choice:"fail"`
	Format    string `short:"f" long:"format"                         description:"Allowed release forms" choice:"x" choice:"xy" choice:"xyz" choice:"x-xy" choice:"x-xyz" choice:"xy-xyz" choice:"any"`
	Include   string `short:"i" long:"include"                        description:"Regexp to keep tags (applied to full names)"`
	Exclude   string `short:"e" long:"exclude"                        description:"Regexp to drop tags (applied to full names)"`
	Stable    bool   `short:"s" long:"stable"                         description:"Ignore pre-release versions"`
}

type OptionsInstall struct {
	Dest          string `short:"d" long:"dest"           env:"TAGPULL_DEST" description:"Destination directory (default .)"`
	ArchiveFormat string `long:"archive-format" description:"Archive to download" choice:"zip" choice:"tar.gz"`
	Stamp         string `long:"stamp" description:"File in dest recording the installed tag"`
	SkipCurrent   bool   `long:"skip-current" description:"Do nothing when the stamp already names the selected tag"`
}

type OptionsOutput struct {
	List    bool `short:"l" long:"list"    description:"Print matching tags newest first and exit"`
	Limit   int  `short:"n" long:"limit"   description:"Max tags printed by --list (<=0 = unlimited)"`
	DryRun  bool `long:"dry-run" description:"Print the selected tag and archive URL without installing"`
	Verbose bool `short:"v" long:"verbose" description:"Debug logging"`
	Quiet   bool `short:"q" long:"quiet"   description:"Only warnings and errors"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

type exitCoder interface {
	ExitCode() int
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}

	return 1
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opt Options
	parser := flags.NewParser(&opt, flags.HelpFlag|flags.PassDoubleDash|flags.AllowBoolValues)
	parser.LongDescription = `tagpull finds the newest release tag carrying a prefix (templates-v by default)
and installs the tag's source archive into a directory, dropping the archive's
top-level wrapper folder. Flags override the config file, which overrides defaults.`

	if _, err := parser.ParseArgs(args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(stdout, flagErr.Message)
			return nil
		}
		return tagpull.Wrap(tagpull.KindUsage, "parse flags", "", err)
	}

	if opt.Version {
		_, _ = fmt.Fprintln(stdout, versionString())
		return nil
	}

	cfg, err := Load(opt.Config)
	if err != nil {
		return tagpull.Wrap(tagpull.KindUsage, "load config", opt.Config, err)
	}

	s, err := merge(opt, cfg)
	if err != nil {
		return err
	}

	logger := newLogger(stderr, opt.Output.Verbose, opt.Output.Quiet)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return execute(ctx, s, logger, stdout)
}

func newLogger(w io.Writer, verbose, quiet bool) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}

func execute(ctx context.Context, s settings, logger *log.Logger, stdout io.Writer) error {
	client, err := remote.NewClient(s.repo,
		remote.WithBaseURL(s.apiURL),
		remote.WithToken(s.token),
		remote.WithUserAgent("tagpull/"+Version),
		remote.WithPerPage(s.perPage),
		remote.WithMaxPages(s.maxPages),
		remote.WithArchiveFormat(s.format),
	)
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{"repo": client.Repo(), "url": client.TagsURL()}).Debug("listing tags")

	tags, err := client.ListTags(ctx)
	if err != nil {
		return err
	}

	logger.WithField("count", len(tags)).Debug("tags fetched")

	if s.list {
		cands, err := tagpull.Candidates(tags, s.resolve)
		if err != nil {
			return err
		}
		for _, c := range cands {
			_, _ = fmt.Fprintln(stdout, c.Tag.Name)
		}
		return nil
	}

	var release tagpull.Resolution
	if s.tag != "" {
		release = tagpull.Lookup(tags, s.tag, s.resolve)
	} else {
		release = tagpull.Resolve(tags, s.resolve)
	}

	switch {
	case release.Failed():
		return release.Err
	case release.NotFound():
		logger.WithFields(log.Fields{
			"repo":       client.Repo(),
			"prefix":     s.resolve.Prefix,
			"tag":        s.tag,
			"candidates": release.Candidates,
		}).Warn("no matching release tag, nothing to install")
		return nil
	}

	fields := log.Fields{"tag": release.Tag.Name, "candidates": release.Candidates}
	logger.WithFields(fields).Info("release selected")

	if s.dryRun {
		_, _ = fmt.Fprintf(stdout, "%s\t%s\n", release.Tag.Name, release.Tag.ArchiveURL)
		return nil
	}

	if s.skipCurrent {
		current, err := install.ReadStamp(s.dest, s.stamp)
		if err != nil {
			return err
		}
		if current.Tag == release.Tag.Name {
			logger.WithFields(fields).WithFields(log.Fields{
				"dest":         s.dest,
				"installed_at": current.InstalledAt,
			}).Info("already up to date")
			_, _ = fmt.Fprintln(stdout, release.Tag.Name)
			return nil
		}
	}

	installer := install.New(
		install.WithToken(s.token, client.APIHost()),
		install.WithUserAgent("tagpull/"+Version),
		install.WithStamp(s.stamp),
		install.WithProgressFunc(progressLogger(logger, release.Tag.Name)),
	)

	res, err := installer.Install(ctx, release, s.dest)
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"tag":      res.Tag,
		"path":     res.Path,
		"files":    len(res.Files),
		"format":   res.Format,
		"stripped": res.Stripped,
	}).Info("release installed")

	for _, f := range res.Files {
		logger.WithField("file", f).Debug("installed")
	}

	_, _ = fmt.Fprintln(stdout, res.Tag)
	return nil
}

// progressLogger logs download progress at debug level once per MiB.
func progressLogger(logger *log.Logger, tag string) install.ProgressFunc {
	if !logger.IsLevelEnabled(log.DebugLevel) {
		return nil
	}

	const step = 1 << 20
	var next int64 = step

	return func(done, total int64) {
		if done < next && done != total {
			return
		}
		for next <= done {
			next += step
		}

		logger.WithFields(log.Fields{"tag": tag, "bytes": done, "total": total}).Debug("downloading")
	}
}
