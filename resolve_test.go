package tagpull

import (
	"errors"
	"reflect"
	"regexp"
	"testing"
)

func tagsOf(names ...string) []Tag {
	out := make([]Tag, 0, len(names))
	for _, n := range names {
		out = append(out, Tag{Name: n, ArchiveURL: "https://example.com/archive/" + n + ".zip"})
	}

	return out
}

func names(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Tag.Name)
	}

	return out
}

func TestResolveLatest_PicksHighestTemplateTag(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v2.4.1", "templates-v2.4.0", "v1.3.8", "templates-v2.3.1")

	res := ResolveLatest(in, "templates-v")
	if !res.Found() {
		t.Fatalf("status = %v; want found", res.Status)
	}

	if res.Tag.Name != "templates-v2.4.1" {
		t.Fatalf("tag = %q; want templates-v2.4.1", res.Tag.Name)
	}

	if res.Tag.ArchiveURL != "https://example.com/archive/templates-v2.4.1.zip" {
		t.Fatalf("archive url = %q", res.Tag.ArchiveURL)
	}

	if res.Version.Major != 2 || res.Version.Minor != 4 || res.Version.Patch != 1 {
		t.Fatalf("version = %d.%d.%d; want 2.4.1", res.Version.Major, res.Version.Minor, res.Version.Patch)
	}

	if res.Candidates != 3 {
		t.Fatalf("candidates = %d; want 3", res.Candidates)
	}
}

func TestResolveLatest_IgnoresOtherStreams(t *testing.T) {
	t.Parallel()

	in := tagsOf("v1.5.0", "cli-v1.4.0", "templates-v2.4.1", "v1.3.8", "templates-v2.4.0")

	res := ResolveLatest(in, "templates-v")
	if !res.Found() || res.Tag.Name != "templates-v2.4.1" {
		t.Fatalf("got %v %q; want found templates-v2.4.1", res.Status, res.Tag.Name)
	}
}

func TestResolveLatest_NotFound(t *testing.T) {
	t.Parallel()

	cases := [][]Tag{
		nil,
		{},
		tagsOf("v1.5.0", "v1.3.8"),
		tagsOf("cli-v9.9.9", "templates", "Templates-v3.0.0", "xtemplates-v3.0.0"),
	}

	for _, in := range cases {
		res := ResolveLatest(in, "templates-v")
		if !res.NotFound() {
			t.Fatalf("ResolveLatest(%v) = %v; want not-found", in, res.Status)
		}

		if res.Err != nil {
			t.Fatalf("not-found must not carry an error, got %v", res.Err)
		}
	}
}

func TestResolve_EmptyPrefixFails(t *testing.T) {
	t.Parallel()

	res := Resolve(tagsOf("templates-v1.0.0"), Options{})
	if !res.Failed() {
		t.Fatalf("status = %v; want failed", res.Status)
	}

	if !errors.Is(res.Err, ErrUsage) {
		t.Fatalf("err = %v; want ErrUsage", res.Err)
	}
}

func TestResolve_NumericOrdering(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v2.9.0", "templates-v2.10.0", "templates-v10.0.0", "templates-v9.99.99")

	res := ResolveLatest(in, "templates-v")
	if res.Tag.Name != "templates-v10.0.0" {
		t.Fatalf("got %q; want templates-v10.0.0", res.Tag.Name)
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	t.Parallel()

	perms := [][]string{
		{"templates-v1.0.0", "templates-v1.2.0", "templates-v1.1.9"},
		{"templates-v1.2.0", "templates-v1.1.9", "templates-v1.0.0"},
		{"templates-v1.1.9", "templates-v1.0.0", "templates-v1.2.0"},
	}

	for _, p := range perms {
		res := ResolveLatest(tagsOf(p...), "templates-v")
		if res.Tag.Name != "templates-v1.2.0" {
			t.Fatalf("ResolveLatest(%v) = %q; want templates-v1.2.0", p, res.Tag.Name)
		}
	}
}

func TestResolve_TieFirstWins(t *testing.T) {
	t.Parallel()

	in := []Tag{
		{Name: "templates-v2.0.0+build.1", ArchiveURL: "first"},
		{Name: "templates-v2.0.0", ArchiveURL: "second"},
		{Name: "templates-v2.0.0", ArchiveURL: "third"},
		{Name: "templates-v1.9.9", ArchiveURL: "older"},
	}

	res := ResolveLatest(in, "templates-v")
	if res.Tag.ArchiveURL != "first" {
		t.Fatalf("tie broken to %q; want first", res.Tag.ArchiveURL)
	}

	// Same list reversed: the first encountered equal version now is "third".
	rev := []Tag{in[3], in[2], in[1], in[0]}
	res = ResolveLatest(rev, "templates-v")
	if res.Tag.ArchiveURL != "third" {
		t.Fatalf("tie broken to %q; want third", res.Tag.ArchiveURL)
	}
}

func TestResolve_MalformedPolicies(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-vnext", "templates-v1.2.0", "templates-v1.2.3.4.5", "templates-v1.3.0")

	skip := Resolve(in, Options{Prefix: "templates-v", Malformed: MalformedSkip})
	if skip.Tag.Name != "templates-v1.3.0" {
		t.Fatalf("skip: got %q; want templates-v1.3.0", skip.Tag.Name)
	}

	last := Resolve(in, Options{Prefix: "templates-v", Malformed: MalformedLast})
	if last.Tag.Name != "templates-v1.3.0" {
		t.Fatalf("last: got %q; want templates-v1.3.0", last.Tag.Name)
	}

	fail := Resolve(in, Options{Prefix: "templates-v", Malformed: MalformedFail})
	if !fail.Failed() || !errors.Is(fail.Err, ErrMalformed) {
		t.Fatalf("fail: got %v %v; want failed ErrMalformed", fail.Status, fail.Err)
	}

	var e *Error
	if !errors.As(fail.Err, &e) || e.Target != "templates-vnext" {
		t.Fatalf("fail: error target = %+v; want templates-vnext", e)
	}
}

func TestResolve_MalformedOnly(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-vnext", "templates-vbeta")

	if res := Resolve(in, Options{Prefix: "templates-v"}); !res.NotFound() {
		t.Fatalf("skip: status %v; want not-found", res.Status)
	}

	res := Resolve(in, Options{Prefix: "templates-v", Malformed: MalformedLast})
	if !res.Found() || res.Tag.Name != "templates-vnext" {
		t.Fatalf("last: got %v %q; want first malformed tag", res.Status, res.Tag.Name)
	}

	if res.Version.Valid {
		t.Fatalf("last: malformed winner must carry a zero version")
	}
}

func TestResolve_Prerelease(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v2.4.1", "templates-v2.5.0-rc.1")

	res := ResolveLatest(in, "templates-v")
	if res.Tag.Name != "templates-v2.5.0-rc.1" {
		t.Fatalf("got %q; want templates-v2.5.0-rc.1", res.Tag.Name)
	}

	res = ResolveLatest(append(in, Tag{Name: "templates-v2.5.0"}), "templates-v")
	if res.Tag.Name != "templates-v2.5.0" {
		t.Fatalf("release must beat its pre-release, got %q", res.Tag.Name)
	}

	stable := Resolve(in, Options{Prefix: "templates-v", Stable: true})
	if stable.Tag.Name != "templates-v2.4.1" {
		t.Fatalf("stable: got %q; want templates-v2.4.1", stable.Tag.Name)
	}
}

func TestResolve_Format(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v3", "templates-v2.5", "templates-v2.4.1")

	res := ResolveLatest(in, "templates-v")
	if res.Tag.Name != "templates-v2.4.1" {
		t.Fatalf("xyz: got %q; want templates-v2.4.1", res.Tag.Name)
	}

	res = Resolve(in, Options{Prefix: "templates-v", Format: FormatAll})
	if res.Tag.Name != "templates-v3" {
		t.Fatalf("all: got %q; want templates-v3", res.Tag.Name)
	}

	res = Resolve(in, Options{Prefix: "templates-v", Format: FormatXY | FormatXYZ})
	if res.Tag.Name != "templates-v2.5" {
		t.Fatalf("xy-xyz: got %q; want templates-v2.5", res.Tag.Name)
	}
}

func TestResolve_IncludeExclude(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v1.0.0", "templates-v2.0.0", "templates-v3.0.0")

	res := Resolve(in, Options{Prefix: "templates-v", Exclude: regexp.MustCompile(`v3\.`)})
	if res.Tag.Name != "templates-v2.0.0" {
		t.Fatalf("exclude: got %q", res.Tag.Name)
	}

	res = Resolve(in, Options{Prefix: "templates-v", Include: regexp.MustCompile(`v1\.`)})
	if res.Tag.Name != "templates-v1.0.0" {
		t.Fatalf("include: got %q", res.Tag.Name)
	}

	if res.Candidates != 1 {
		t.Fatalf("include: candidates = %d; want 1", res.Candidates)
	}
}

func TestCandidates_NewestFirst(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v2.3.1", "v9.0.0", "templates-vbad", "templates-v2.4.1", "templates-v2.4.0")

	got, err := Candidates(in, Options{Prefix: "templates-v", Malformed: MalformedLast})
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}

	want := []string{"templates-v2.4.1", "templates-v2.4.0", "templates-v2.3.1", "templates-vbad"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Candidates = %v; want %v", names(got), want)
	}

	if got[3].Valid || !got[0].Valid || got[0].Suffix != "2.4.1" {
		t.Fatalf("unexpected candidate fields: %+v", got)
	}

	limited, err := Candidates(in, Options{Prefix: "templates-v", Limit: 2})
	if err != nil {
		t.Fatalf("Candidates limit: %v", err)
	}

	if !reflect.DeepEqual(names(limited), want[:2]) {
		t.Fatalf("Candidates limit = %v; want %v", names(limited), want[:2])
	}
}

func TestCandidates_AgreesWithResolve(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v0.1.0", "templates-v0.10.0", "templates-v0.9.0-rc.2", "templates-v0.10.0-rc.1")
	opt := Options{Prefix: "templates-v"}

	cs, err := Candidates(in, opt)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}

	if res := Resolve(in, opt); res.Tag.Name != cs[0].Tag.Name {
		t.Fatalf("Resolve = %q, Candidates[0] = %q", res.Tag.Name, cs[0].Tag.Name)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	in := tagsOf("templates-v2.4.1", "templates-v2.4.0", "v1.3.8")
	opt := DefaultOptions()

	res := Lookup(in, "templates-v2.4.0", opt)
	if !res.Found() || res.Tag.ArchiveURL != "https://example.com/archive/templates-v2.4.0.zip" {
		t.Fatalf("Lookup found = %v %+v", res.Status, res.Tag)
	}

	if res := Lookup(in, "templates-v9.9.9", opt); !res.NotFound() {
		t.Fatalf("Lookup missing = %v; want not-found", res.Status)
	}

	if res := Lookup(in, "v1.3.8", opt); !res.Failed() || !errors.Is(res.Err, ErrUsage) {
		t.Fatalf("Lookup foreign stream = %v %v; want usage failure", res.Status, res.Err)
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	cases := map[Status]string{
		StatusNotFound: "not-found",
		StatusFound:    "found",
		StatusFailed:   "failed",
	}

	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("Status(%d).String() = %q; want %q", s, got, want)
		}
	}
}
