// Package models defines domain entities and persistence contracts for the veechar archive player.
//
// The package contains two categories of types:
//
// 1. Listing values: lightweight structs describing the remote archive
//   - [AudioItem] : a folder or audio entry at some archive path
//   - [ItemKind] : folder or audio
//
// 2. Persistent records: rows owned by the record store
//   - [TrackRecord] : per-track playback position, duration and download state
//   - [FavoriteFolder] : a folder the user starred
//
// [TrackStore] and [FavoriteStore] are the contracts the core components consume; the sqlite
// implementation lives in the repositories package. [Reconcile] is the pure self-healing step run on
// every track read.
package models
