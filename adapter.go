package navkit

import "context"

// Adapter is the engine's binding to whatever external store owns the
// truth of the session's history (nothing, for memadapter; a patched
// History/Location host, for historyadapter; a native Navigation API
// host, for platformadapter). The engine calls Commit once per transition
// phase 3 unless the transition was started through one of the Engine's
// External* methods; adapters reacting to an external mutation (a
// popstate event, a host-side navigate) use those so the engine doesn't
// echo the mutation back out to the same host.
type Adapter interface {
	// Origin is the engine's configured origin, used to compute
	// Destination.SameDocument.
	Origin() string

	// Base is the adapter's base href, used to resolve relative URLs.
	Base() string

	// Initial returns the NavigationState the engine should seed its
	// state cell with.
	Initial() NavigationState

	// Commit reconciles to/event with the external store. A non-nil
	// error aborts the transition before phase 4 runs.
	Commit(ctx context.Context, to Destination, event TransitionEvent) error
}

// StateSource is implemented by adapters for which the external store is
// authoritative over NavigationState (C7, the platform Navigation API).
// When an Adapter also implements StateSource, phase 4 adopts its
// snapshot wholesale instead of applying the push/replace/reload/traverse
// table (spec §4.4.5).
type StateSource interface {
	NewNavigationState() NavigationState
}
