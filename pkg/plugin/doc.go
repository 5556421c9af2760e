// Package plugin discovers independently packaged extensions and
// normalizes their metadata into descriptors for composition.
//
// # Overview
//
// Extensions live under a conventional scope directory ("plugins" by
// default) at the host root, and may themselves bundle further
// extensions under their own scope directory at arbitrary depth. When
// the same extension name appears at multiple depths, the shortest path
// wins; the common case is a transitively-bundled extension that the
// host also requires directly.
//
// An extension is recognized by its plugin.yaml manifest. Its metadata
// probes (manifest, VERSION, assets/, i18n/, migrations/) run
// concurrently per extension and are joined before the descriptor is
// assembled. A missing probe target is fine; a present-but-malformed
// one skips that extension only. Only an unreadable root directory
// aborts discovery outright, with ErrDiscovery.
//
// # Registry
//
// The composed world (descriptors, permission tree, scopes, decision
// engine) lives in an immutable Snapshot behind an atomic pointer.
// Hot reloads and scheduled recomposition build a new snapshot and swap
// it in whole; nothing is mutated in place.
package plugin
