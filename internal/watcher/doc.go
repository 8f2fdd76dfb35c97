/*
Package watcher turns filesystem notifications from a workspace's virtual
tree into debounced reconciliation calls.

# Pipeline

fsnotify events are paired (Rename+Create becomes one Renamed change),
filtered, and folded into a PendingStore. Every flush interval a single
goroutine takes the items that have been quiet for the debounce threshold and
hands each to the Reconciler according to its last change kind:

	sidecar  Created/Changed  CreateSidecar
	sidecar  Renamed          RenameSidecar
	sidecar  Deleted          RemoveSidecar
	file     Deleted          nothing
	file     otherwise        CreateNormal

# Directory moves

A deleted directory is remembered by leaf name until the next pass. If a
directory with the same name is created first, the pair is a move and the
sidecars under the new location relocate their files. Otherwise the pass
queues a deletion for every mapping under the old path.

# Self-inflicted changes

While an item is reconciled its paths sit in the IgnoreSet so the writes the
reconciler makes are not coalesced again.
*/
package watcher
