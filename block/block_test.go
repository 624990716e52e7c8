package block_test

import (
	"context"
	"testing"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/block"
	"github.com/navkit-dev/navkit/memadapter"
)

func newTestEngine(rawURL string) *navkit.Engine {
	adapter := memadapter.New(memadapter.WithURL(rawURL))
	return navkit.New(adapter, adapter.Origin())
}

// Scenario 5: blocking confirm.
func TestScenarioBlockingConfirm(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine("https://example.com/foo/1")
	facade := block.New(engine)
	defer facade.Close()

	var didBlock bool
	unsub := block.WhenBlocked(facade, func(b *block.Blocking) {
		didBlock = true
		b.Confirm()
	})
	defer unsub()

	dest, err := engine.Navigate(ctx, "/bar/42")
	if err != nil {
		t.Fatal(err)
	}
	if !didBlock {
		t.Fatal("expected the facade to block the transition")
	}
	if dest.URL.Path != "/bar/42" {
		t.Fatalf("expected current path /bar/42 after confirm, got %q", dest.URL.Path)
	}
	if facade.Value() != nil {
		t.Fatal("expected the facade to settle back to unblocked")
	}
}

// Scenario 5: blocking cancel.
func TestScenarioBlockingCancel(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine("https://example.com/foo/1")
	facade := block.New(engine)
	defer facade.Close()

	var didBlock bool
	unsub := block.WhenBlocked(facade, func(b *block.Blocking) {
		didBlock = true
		b.Cancel()
	})
	defer unsub()

	dest, err := engine.Navigate(ctx, "/bar/42")
	if err != nil {
		t.Fatal(err)
	}
	if !didBlock {
		t.Fatal("expected the facade to block the transition")
	}
	if dest.URL.Path != "/foo/1" {
		t.Fatalf("expected current path unchanged at /foo/1 after cancel, got %q", dest.URL.Path)
	}
}

func TestBlockingSettleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine("https://example.com/foo/1")
	facade := block.New(engine)
	defer facade.Close()

	unsub := block.WhenBlocked(facade, func(b *block.Blocking) {
		b.Confirm()
		b.Cancel()
		b.Redirect("/elsewhere")
	})
	defer unsub()

	dest, err := engine.Navigate(ctx, "/bar/42")
	if err != nil {
		t.Fatal(err)
	}
	if dest.URL.Path != "/bar/42" {
		t.Fatalf("expected the first settle (Confirm) to win, got %q", dest.URL.Path)
	}
}

// The engine's FIFO ticket serializes transitions, so a façade never
// actually observes two in-flight blocks at once; each settled transition
// unblocks the façade for the next one to engage independently.
func TestFacadeReblocksOnEachSubsequentTransition(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine("https://example.com/foo/1")
	facade := block.New(engine)
	defer facade.Close()

	var blockedEvents []navkit.TransitionEvent
	unsub := block.WhenBlocked(facade, func(b *block.Blocking) {
		blockedEvents = append(blockedEvents, b.Event)
		b.Confirm()
	})
	defer unsub()

	if _, err := engine.Navigate(ctx, "/bar/42"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Navigate(ctx, "/baz/7"); err != nil {
		t.Fatal(err)
	}
	if len(blockedEvents) != 2 {
		t.Fatalf("expected each settled transition to block again once unblocked, got %d", len(blockedEvents))
	}
}
