/*
Package tagpull resolves the newest "template release" of an upstream project
from its tag list and describes how to install it.

The root package is network-agnostic: it operates purely on a slice of Tag
records fetched elsewhere (see the remote package) and never logs.
Typical flow:

 1. Fetch tags with remote.Client.ListTags.
 2. Call ResolveLatest (or Resolve with Options) to pick one tag.
 3. Branch on Resolution.Status: Found / NotFound / Failed.
 4. Hand a found Resolution to install.Installer.

Tag selection:
  - Only tags whose name starts with the configured prefix are eligible.
    Matching is exact and case-sensitive: with prefix "templates-v" the tags
    "v1.5.0" and "cli-v1.4.0" never win.
  - The remainder after the prefix is parsed as SemVer (a leading "v" is
    accepted). By default only full X.Y.Z forms are valid.
  - Pre-releases compete by SemVer precedence unless Options.Stable is set.
    Build metadata is ignored.
  - Malformed suffixes follow Options.Malformed: skip (default), sort last,
    or fail the whole resolution.
  - Equal precedence is broken by input order: the first tag wins.

Usage example:

	res := tagpull.ResolveLatest([]tagpull.Tag{
		{Name: "v1.5.0"},
		{Name: "cli-v1.4.0"},
		{Name: "templates-v2.4.1", ArchiveURL: "https://example.com/templates-v2.4.1.zip"},
		{Name: "templates-v2.4.0"},
	}, "templates-v")

	switch res.Status {
	case tagpull.StatusFound:
		fmt.Println(res.Tag.Name) // templates-v2.4.1
	case tagpull.StatusNotFound:
		fmt.Println("nothing to install")
	case tagpull.StatusFailed:
		fmt.Println(res.Err)
	}
*/
package tagpull
