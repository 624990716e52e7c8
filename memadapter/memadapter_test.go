package memadapter_test

import (
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/memadapter"
)

func TestWithURLSeedsOneEntryAndDerivesOrigin(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1?q=1"))

	state := a.Initial()
	if len(state.Entries) != 1 || state.Index != 0 {
		t.Fatalf("expected one seeded entry at index 0, got %+v", state)
	}
	if got := state.Entries[0].URL.String(); got != "https://example.com/foo/1?q=1" {
		t.Fatalf("expected seeded url preserved, got %q", got)
	}
	if a.Origin() != "https://example.com" {
		t.Fatalf("expected derived origin, got %q", a.Origin())
	}
	if a.Base() != "/" {
		t.Fatalf("expected default base href, got %q", a.Base())
	}
}

func TestWithStateCarriesStateOnTheSeededEntry(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1"), memadapter.WithState("seed"))

	if got := a.Initial().Entries[0].State; got != "seed" {
		t.Fatalf("expected seeded state, got %v", got)
	}
}

func TestWithEntriesAdoptsCallerSuppliedListAndIndex(t *testing.T) {
	u1, _ := url.Parse("https://example.com/a")
	u2, _ := url.Parse("https://example.com/b")
	entries := []navkit.Destination{
		{ID: uuid.New(), Key: uuid.New(), URL: u1},
		{ID: uuid.New(), Key: uuid.New(), URL: u2},
	}

	a := memadapter.New(memadapter.WithEntries(entries, 1))

	state := a.Initial()
	if len(state.Entries) != 2 || state.Index != 1 {
		t.Fatalf("expected the supplied entries and index adopted verbatim, got %+v", state)
	}
	if a.Origin() != "https://example.com" {
		t.Fatalf("expected origin derived from the first entry, got %q", a.Origin())
	}
}

func TestWithOriginOverridesDerivedOrigin(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1"), memadapter.WithOrigin("https://other.example"))

	if a.Origin() != "https://other.example" {
		t.Fatalf("expected overridden origin, got %q", a.Origin())
	}
}

func TestWithBaseOverridesDefaultBaseHref(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1"), memadapter.WithBase("/app/"))

	if a.Base() != "/app/" {
		t.Fatalf("expected overridden base href, got %q", a.Base())
	}
}

func TestWithMaxEntriesOverridesDefaultAndIgnoresNonPositive(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1"), memadapter.WithMaxEntries(5))
	if a.MaxEntries() != 5 {
		t.Fatalf("expected overridden clamp bound, got %d", a.MaxEntries())
	}

	b := memadapter.New(memadapter.WithURL("https://example.com/foo/1"), memadapter.WithMaxEntries(0))
	if b.MaxEntries() != 50 {
		t.Fatalf("expected non-positive override ignored in favor of the default, got %d", b.MaxEntries())
	}
}

func TestNoOptionsSeedsRootPathWithEmptyOrigin(t *testing.T) {
	a := memadapter.New()

	state := a.Initial()
	if len(state.Entries) != 1 {
		t.Fatalf("expected a single seeded entry, got %d", len(state.Entries))
	}
	if state.Entries[0].URL.Path != "/" {
		t.Fatalf("expected root path seeded by default, got %q", state.Entries[0].URL.Path)
	}
	if a.Origin() != "" {
		t.Fatalf("expected empty origin with no options given, got %q", a.Origin())
	}
}

func TestCommitIsANoOp(t *testing.T) {
	a := memadapter.New(memadapter.WithURL("https://example.com/foo/1"))
	dest := a.Initial().Entries[0]

	if err := a.Commit(nil, dest, navkit.TransitionEvent{Type: navkit.TransitionPush}); err != nil {
		t.Fatalf("expected Commit to be a no-op, got error: %v", err)
	}
}

var _ navkit.Adapter = (*memadapter.Adapter)(nil)
