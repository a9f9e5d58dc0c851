// Package events defines the typed events consumed by the assistant loop.
//
// Device, network and timer callbacks never touch assistant state directly.
// They post one of these events and the loop applies it to completion before
// reading the next one.
//
// Kinds are grouped by namespace:
//
//   - user.*: activation, typed prompts and stop requests.
//   - capture.*: speech capture lifecycle and transcript snapshots.
//   - turn.*: classification, playback and dispatch results for one turn.
//   - timer.*: deferred re-listen.
//
// Turn scoped events carry the id of the turn that produced them so late
// results from an abandoned turn can be discarded.
package events
