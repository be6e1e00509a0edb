// Package store persists sessions and their derived data in a single
// SQLite database. Arrays are stored as little-endian float64 blobs,
// so a save/load round trip is bit identical. Loading reconstructs the
// container tree with lazy loaders: data blobs stay in the database
// until first access, mirroring how importers leave recorded data on
// disk.
//
// Saves take an exclusive file lock next to the database so two
// processes cannot interleave a session rewrite.
package store
