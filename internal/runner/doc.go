// Package runner applies coalesced filesystem changes to the catalog.
//
// A file dropped into the virtual tree is adopted: its data moves to the
// physical tree, an identity sidecar (<name>.aclgene) is written where the
// file was, and a mapping and content record are created. From then on the
// sidecar stands in for the file; moving or deleting the sidecar moves or
// deletes the physical file. Content identity survives any number of moves.
package runner
