// Package db implements the in-memory keyspace engine of sKV: a tree of keyspaces,
// each holding named tables, each table holding key/value entries constrained by a
// fixed Model.
//
// Key Components:
//
//   - Engine: The root of the tree. It is created once per process with New (or
//     rebuilt from a snapshot with NewFromImage) and shared by every connection.
//     All methods are safe for concurrent use.
//
//   - Models: Every table declares its types at creation, either as a key/value-pair
//     model keymap(K,V) with K in {str, binstr}, or as a single-type model keymap(V)
//     whose keys are raw bytes. Values that do not match are rejected with
//     CodeTypeMismatch, the table is left unchanged.
//
//   - Entities and names: Container names match ^[a-zA-Z_$][a-zA-Z_$0-9]*$ and are at
//     most 64 bytes. An Entity is written `keyspace:table` or `table` relative to the
//     current keyspace of a session.
//
//   - Protected objects: The default keyspace (name configurable) with its
//     `default` table and the `system` keyspace always exist. They cannot be dropped
//     and no tables can be created in `system`.
//
//   - Image: A point-in-time copy of the whole tree used by lib/persist. Snapshot
//     holds the engine wide write lock for the copy only, so the image is one
//     consistent point of the whole store. Reads are never blocked.
//
//   - Info: Counters and size statistics reported by SYS INFO.
//
// Errors:
//
// Every failure is a *Error carrying an ErrCode (NotFound, AlreadyExists,
// TypeMismatch, ProtectedObject, NotEmpty, BadName, UnknownModel, BadExpression).
// The sentinel values (ErrNotFound, ...) match any error of the same code with
// errors.Is.
//
// Thread-safety:
//
// Single-key operations are atomic per key: a reader observes either the previous or
// the new value. Creating and dropping containers is atomic with respect to lookups,
// a query that resolved a table before it was dropped still completes against it.
//
// Related Packages:
//
// The util package (github.com/ValentinKolb/sKV/lib/db/util) provides the seeded key
// hasher of the table maps and the size statistics reported by Info.
package db
