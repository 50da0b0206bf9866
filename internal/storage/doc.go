// Package storage provides artifact stores for wasmsnap snapshots.
//
// A snapshot is persisted as a small set of named artifacts:
//
//   - <id>.snap: control state, globals and (RLE) memory
//   - <id>.bin: binary diff records (Diff Log strategy)
//   - <id>.meta: JSON manifest written after a successful save
//
// Two backends implement Store:
//
//   - FileStore: one file per artifact in a directory, written through a
//     temporary file and renamed into place on Close
//   - BadgerStore: artifacts as values in an embedded Badger database, for
//     hosts that keep many snapshots and want a single data directory
package storage
