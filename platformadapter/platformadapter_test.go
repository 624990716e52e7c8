package platformadapter_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/hosttest"
	"github.com/navkit-dev/navkit/platformadapter"
)

func TestPlatformAdapterInitialAdoptsHostEntries(t *testing.T) {
	origin := "https://example.com"
	host := hosttest.NewPlatformHost(t, origin+"/foo/1")
	adapter := platformadapter.New(host, origin, "/")
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)

	cur := engine.CurrentEntry()
	if cur.URL.Path != "/foo/1" {
		t.Fatalf("expected current path /foo/1, got %q", cur.URL.Path)
	}
	if len(engine.Entries()) != 1 {
		t.Fatalf("expected a single seeded entry, got %d", len(engine.Entries()))
	}
}

func TestPlatformAdapterPushCommitsAndAdoptsHostState(t *testing.T) {
	ctx := context.Background()
	origin := "https://example.com"
	host := hosttest.NewPlatformHost(t, origin+"/foo/1")
	adapter := platformadapter.New(host, origin, "/")
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)

	dest, err := engine.Navigate(ctx, "/foo/2")
	if err != nil {
		t.Fatal(err)
	}
	if dest.URL.Path != "/foo/2" {
		t.Fatalf("expected destination path /foo/2, got %q", dest.URL.Path)
	}
	if len(engine.Entries()) != 2 {
		t.Fatalf("expected the host to now report two entries, got %d", len(engine.Entries()))
	}
	if host.CurrentIndex() != 1 {
		t.Fatalf("expected host index 1 after push, got %d", host.CurrentIndex())
	}
}

func TestPlatformAdapterReplaceOverwritesHostEntryInPlace(t *testing.T) {
	ctx := context.Background()
	origin := "https://example.com"
	host := hosttest.NewPlatformHost(t, origin+"/foo/1")
	adapter := platformadapter.New(host, origin, "/")
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)

	if _, err := engine.Navigate(ctx, "/foo/1?q=1", navkit.WithHistory(navkit.HistoryReplace)); err != nil {
		t.Fatal(err)
	}
	if len(engine.Entries()) != 1 {
		t.Fatalf("expected a replace to keep a single entry, got %d", len(engine.Entries()))
	}
	if host.Entries()[0].URL.RawQuery != "q=1" {
		t.Fatalf("expected the host's single entry updated in place, got query %q", host.Entries()[0].URL.RawQuery)
	}
}

// A host-initiated navigate event that can be intercepted is claimed and
// translated into an external navigation against the engine.
func TestPlatformAdapterHostNavigateEventIsClaimedAndApplied(t *testing.T) {
	origin := "https://example.com"
	host := hosttest.NewPlatformHost(t, origin+"/foo/1")
	adapter := platformadapter.New(host, origin, "/")
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)

	target, err := url.Parse(origin + "/foo/3")
	if err != nil {
		t.Fatal(err)
	}
	claimed := host.FireNavigate(platformadapter.HostNavigateEvent{URL: target, CanIntercept: true})
	if !claimed {
		t.Fatal("expected an interceptable navigate event to be claimed")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if engine.CurrentEntry().URL.Path == "/foo/3" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := engine.CurrentEntry().URL.Path; got != "/foo/3" {
		t.Fatalf("expected the external navigate to land on /foo/3, got %q", got)
	}
}

// An event the host should handle itself (hash-only, download, form data,
// or simply not interceptable) is left alone.
func TestPlatformAdapterHostNavigateEventDeclinedWhenNotInterceptable(t *testing.T) {
	origin := "https://example.com"
	host := hosttest.NewPlatformHost(t, origin+"/foo/1")
	adapter := platformadapter.New(host, origin, "/")
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)

	target, err := url.Parse(origin + "/foo/3")
	if err != nil {
		t.Fatal(err)
	}
	claimed := host.FireNavigate(platformadapter.HostNavigateEvent{URL: target, CanIntercept: false})
	if claimed {
		t.Fatal("expected a non-interceptable navigate event to be declined")
	}

	time.Sleep(20 * time.Millisecond)
	if got := engine.CurrentEntry().URL.Path; got != "/foo/1" {
		t.Fatalf("expected current entry unaffected by a declined event, got %q", got)
	}
}
