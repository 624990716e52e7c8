package historyadapter_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/historyadapter"
	"github.com/navkit-dev/navkit/hosttest"
)

// Scenario 6: history adapter popstate with a patched marker restores
// identity across what looks like a reload.
func TestScenarioHistoryAdapterPopState(t *testing.T) {
	ctx := context.Background()
	origin := "https://example.com"

	host := hosttest.NewHistoryHost(origin + "/foo/1")
	a := uuid.New()
	b := uuid.New()
	originalState := map[string]any{"x": "r"}
	originalMarker := navkit.AsPatchedState(a, b, originalState)
	host.ReplaceState(originalMarker, host.Location())

	adapter := historyadapter.New(host, origin)
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)
	defer adapter.Close()

	seeded := engine.CurrentEntry()
	if seeded.ID != a || seeded.Key != b {
		t.Fatalf("expected seeded identity id=%s key=%s, got id=%s key=%s", a, b, seeded.ID, seeded.Key)
	}

	if _, err := engine.Navigate(ctx, "/foo/2"); err != nil {
		t.Fatal(err)
	}
	if engine.CurrentEntry().URL.Path != "/foo/2" {
		t.Fatalf("expected navigate to move current entry to /foo/2, got %q", engine.CurrentEntry().URL.Path)
	}

	host.FirePopState(origin+"/foo/1", originalMarker)

	current := engine.CurrentEntry()
	if current.ID != a {
		t.Fatalf("expected restored id %s, got %s", a, current.ID)
	}
	if current.Key != b {
		t.Fatalf("expected restored key %s, got %s", b, current.Key)
	}
	if got, ok := current.State.(map[string]any); !ok || got["x"] != "r" {
		t.Fatalf("expected restored state {x:r}, got %#v", current.State)
	}

	restoredMarker, ok := navkit.DetectPatchedMarker(host.HistoryState())
	if !ok {
		t.Fatal("expected host.HistoryState() to still carry a patched marker")
	}
	stateMap, ok := restoredMarker.State.(map[string]any)
	if !ok || stateMap["x"] != "r" {
		t.Fatalf("expected host history.state marker state {x:r}, got %#v", restoredMarker.State)
	}
}

func TestHashChangeResolvesAgainstBase(t *testing.T) {
	origin := "https://example.com"

	host := hosttest.NewHistoryHost(origin + "/app/foo").WithBase("/app/")
	adapter := historyadapter.New(host, origin)
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)
	defer adapter.Close()

	host.FireHashChange("#section")

	current := engine.CurrentEntry()
	if current.URL.Fragment != "section" {
		t.Fatalf("expected fragment %q, got %q", "section", current.URL.Fragment)
	}
	if current.URL.Path != "/app/" {
		t.Fatalf("expected a relative hash change to resolve against base /app/, got path %q", current.URL.Path)
	}
}

func TestPushStateThroughAdapterCommitsMarkerToHost(t *testing.T) {
	ctx := context.Background()
	origin := "https://example.com"
	host := hosttest.NewHistoryHost(origin + "/foo/1")
	adapter := historyadapter.New(host, origin)
	engine := navkit.New(adapter, origin)
	adapter.Attach(engine)
	defer adapter.Close()

	dest, err := engine.Navigate(ctx, "/foo/2")
	if err != nil {
		t.Fatal(err)
	}
	marker, ok := navkit.DetectPatchedMarker(host.HistoryState())
	if !ok {
		t.Fatal("expected a patched marker committed to the host after push")
	}
	if marker.ID != dest.ID || marker.Key != dest.Key {
		t.Fatalf("expected host marker to match committed destination identity")
	}
	if host.Location().Path != "/foo/2" {
		t.Fatalf("expected host location updated to /foo/2, got %q", host.Location().Path)
	}
}
