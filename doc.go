// Package navkit is a typed, effectful façade over a single session's
// navigation history. It models navigation as a sequence of transitions
// between uniquely-identified history entries ("destinations") and lets
// application code observe, intercept, redirect, cancel, and block those
// transitions.
//
// The engine (Engine) is adapter-agnostic: it is driven by an Adapter that
// supplies the initial state and reconciles committed transitions with an
// external source of truth. Three adapters ship alongside this package:
//
//   - memadapter: a zero-external-state adapter for tests and SSR.
//   - historyadapter: binds to a patched History/Location-style host.
//   - platformadapter: binds to a host exposing a first-class Navigation API.
package navkit
