package tagpull

import (
	"fmt"
	"sort"
)

// ResolveLatest returns the tag with the highest version among tags whose
// name starts with prefix. It uses DefaultOptions with the given prefix.
func ResolveLatest(tags []Tag, prefix string) Resolution {
	opt := DefaultOptions()
	opt.Prefix = prefix

	return Resolve(tags, opt)
}

// Resolve filters tags by prefix and picks the newest one.
// Simple, readable pipeline:
//  1. prefix gate (exact, case-sensitive), then Include / Exclude
//  2. parse suffix once, apply Format / Stable / Malformed policy
//  3. empty -> NotFound
//  4. else -> single linear pass keeping the newest (first wins on ties)
func Resolve(tags []Tag, opt Options) Resolution {
	opt = opt.normalized()
	if opt.Prefix == "" {
		return failed(Errorf(KindUsage, "resolve", "", "empty tag prefix"))
	}

	cands, matched, err := collect(tags, opt)
	if err != nil {
		return failed(err)
	}

	if len(cands) == 0 {
		return notFound(matched)
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if newer(c, best) {
			best = c
		}
	}

	return Resolution{
		Status:     StatusFound,
		Tag:        best.Tag,
		Version:    best.Version,
		Candidates: matched,
	}
}

// Candidates returns every eligible tag ordered newest first, capped by opt.Limit.
// The order is the one Resolve uses, so Candidates(...)[0] is what Resolve picks.
func Candidates(tags []Tag, opt Options) ([]Candidate, error) {
	opt = opt.normalized()
	if opt.Prefix == "" {
		return nil, Errorf(KindUsage, "candidates", "", "empty tag prefix")
	}

	cands, _, err := collect(tags, opt)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return newer(cands[i], cands[j])
	})

	return capCandidates(cands, opt.Limit), nil
}

// Lookup pins an exact tag name. The name must carry opt.Prefix; a tag that
// is absent from tags yields NotFound. The version is parsed best-effort and
// a malformed suffix fails only under MalformedFail.
func Lookup(tags []Tag, name string, opt Options) Resolution {
	opt = opt.normalized()
	sfx, ok := suffix(name, opt.Prefix)
	if !ok {
		return failed(Errorf(KindUsage, "lookup", name, "tag does not start with prefix %q", opt.Prefix))
	}

	v, valid := parseVersion(sfx, opt.Format)
	if !valid && opt.Malformed == MalformedFail {
		return failed(malformedSuffix(name, sfx))
	}

	for _, t := range tags {
		if t.Name == name {
			return Resolution{Status: StatusFound, Tag: t, Version: v, Candidates: 1}
		}
	}

	return notFound(0)
}

// collect applies the gates and returns eligible candidates in input order,
// plus the number of tags that passed the prefix and regex gates.
func collect(tags []Tag, opt Options) ([]Candidate, int, error) {
	out := make([]Candidate, 0, len(tags))
	matched := 0

	for idx, t := range tags {
		sfx, ok := suffix(t.Name, opt.Prefix)
		if !ok {
			continue
		}

		if opt.Include != nil && !opt.Include.MatchString(t.Name) {
			continue
		}

		if opt.Exclude != nil && opt.Exclude.MatchString(t.Name) {
			continue
		}

		matched++

		v, valid := parseVersion(sfx, opt.Format)
		if !valid {
			switch opt.Malformed {
			case MalformedFail:
				return nil, matched, malformedSuffix(t.Name, sfx)
			case MalformedLast:
				out = append(out, Candidate{Tag: t, Suffix: sfx, idx: idx})
			}
			continue
		}

		if opt.Stable && v.Prerelease != "" {
			continue
		}

		out = append(out, Candidate{Tag: t, Version: v, Suffix: sfx, Valid: true, idx: idx})
	}

	return out, matched, nil
}

func malformedSuffix(name, sfx string) *Error {
	return &Error{
		Kind:   KindMalformed,
		Op:     "resolve",
		Target: name,
		Detail: fmt.Sprintf("version suffix %q is not a valid version", sfx),
	}
}
