package navkit

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Destination is an immutable, identified entry in a navigation session's
// history. id is fresh on every materialization; key is stable across
// revisits of the same logical slot (see makeOrUpdateDestination).
type Destination struct {
	ID           uuid.UUID
	Key          uuid.UUID
	URL          *url.URL
	State        any
	SameDocument bool
}

func (d Destination) destURL() *url.URL  { return d.URL }
func (d Destination) destState() any     { return d.State }
func (d Destination) isSameDoc() bool    { return d.SameDocument }
func (d Destination) isDestination() bool { return true }

// ProposedDestination is produced when a caller expresses intent for a
// navigation before the engine has assigned identity. UpgradeProposedDestination
// mints id/key for it.
type ProposedDestination struct {
	URL          *url.URL
	State        any
	SameDocument bool
}

func (p ProposedDestination) destURL() *url.URL   { return p.URL }
func (p ProposedDestination) destState() any      { return p.State }
func (p ProposedDestination) isSameDoc() bool     { return p.SameDocument }
func (p ProposedDestination) isDestination() bool { return false }

// DestinationLike is satisfied by both Destination and ProposedDestination,
// matching TransitionEvent.To's "Destination or ProposedDestination" shape.
type DestinationLike interface {
	destURL() *url.URL
	destState() any
	isSameDoc() bool
	isDestination() bool
}

// PatchedState is the envelope a history host persists so that identity
// survives a page reload. Its presence on a destination's state is how the
// factory functions below recognize a rehydrated entry instead of minting a
// fresh one.
type PatchedState struct {
	ID    uuid.UUID `json:"__typed__navigation__id__"`
	Key   uuid.UUID `json:"__typed__navigation__key__"`
	State any       `json:"__typed__navigation__state__"`
}

const (
	patchedIDKey    = "__typed__navigation__id__"
	patchedKeyKey   = "__typed__navigation__key__"
	patchedStateKey = "__typed__navigation__state__"
)

// DetectPatchedMarker reports whether state carries a patched-marker
// envelope, accepting either the typed *PatchedState/PatchedState form used
// in-process or the map[string]any form produced by decoding a host's
// history.state across a wire boundary (see historyadapter and navbridge).
func DetectPatchedMarker(state any) (PatchedState, bool) {
	switch v := state.(type) {
	case PatchedState:
		return v, true
	case *PatchedState:
		if v == nil {
			return PatchedState{}, false
		}
		return *v, true
	case map[string]any:
		rawID, hasID := v[patchedIDKey]
		rawKey, hasKey := v[patchedKeyKey]
		if !hasID || !hasKey {
			return PatchedState{}, false
		}
		id, err := coerceUUID(rawID)
		if err != nil {
			return PatchedState{}, false
		}
		key, err := coerceUUID(rawKey)
		if err != nil {
			return PatchedState{}, false
		}
		return PatchedState{ID: id, Key: key, State: v[patchedStateKey]}, true
	default:
		return PatchedState{}, false
	}
}

func coerceUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case string:
		return uuid.Parse(x)
	default:
		return uuid.UUID{}, errNotAUUID
	}
}

// AsPatchedState wraps id/key/state into the wire envelope recognized by
// DetectPatchedMarker.
func AsPatchedState(id, key uuid.UUID, state any) PatchedState {
	return PatchedState{ID: id, Key: key, State: state}
}

// SameOrigin reports whether u shares origin (scheme + host) with origin.
func SameOrigin(u *url.URL, origin string) bool {
	if u == nil {
		return false
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, originURL.Scheme) && strings.EqualFold(u.Host, originURL.Host)
}

// MakeDestination produces a Destination with fresh identity, unless state
// carries a patched marker, in which case the marker's id/key are adopted
// so identity survives a reload (spec §4.1).
func MakeDestination(rawURL *url.URL, state any, origin string) Destination {
	if marker, ok := DetectPatchedMarker(state); ok {
		return Destination{
			ID:           marker.ID,
			Key:          marker.Key,
			URL:          rawURL,
			State:        marker.State,
			SameDocument: SameOrigin(rawURL, origin),
		}
	}
	return Destination{
		ID:           uuid.New(),
		Key:          uuid.New(),
		URL:          rawURL,
		State:        state,
		SameDocument: SameOrigin(rawURL, origin),
	}
}

// MakeOrUpdateDestination reuses current's key and mints only a fresh id
// when rawURL shares origin and path with current (differing only in query
// or fragment) — a same-path navigation is the same logical slot.
// Otherwise it delegates to MakeDestination.
func MakeOrUpdateDestination(current Destination, rawURL *url.URL, newState any, origin string) Destination {
	if SameOrigin(rawURL, origin) && current.URL != nil && current.URL.Path == rawURL.Path {
		return Destination{
			ID:           uuid.New(),
			Key:          current.Key,
			URL:          rawURL,
			State:        newState,
			SameDocument: true,
		}
	}
	return MakeDestination(rawURL, newState, origin)
}

// UpgradeProposedDestination mints fresh id and key for p, preserving its
// url/state/sameDocument.
func UpgradeProposedDestination(p ProposedDestination) Destination {
	return Destination{
		ID:           uuid.New(),
		Key:          uuid.New(),
		URL:          p.URL,
		State:        p.State,
		SameDocument: p.SameDocument,
	}
}

// NewProposedDestination builds a ProposedDestination for rawURL/state ahead
// of identity assignment.
func NewProposedDestination(rawURL *url.URL, state any, origin string) ProposedDestination {
	return ProposedDestination{URL: rawURL, State: state, SameDocument: SameOrigin(rawURL, origin)}
}

// makeTraverseDestination produces a destination with the same key as
// target but a fresh id, per traverseTo/back/forward's identity rule.
func makeTraverseDestination(target Destination) Destination {
	return Destination{
		ID:           uuid.New(),
		Key:          target.Key,
		URL:          target.URL,
		State:        target.State,
		SameDocument: target.SameDocument,
	}
}
