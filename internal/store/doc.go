// Package store provides the persistent backends for the artifact and
// result caches.
//
// Two implementations share one contract:
//   - Store: SQLite via mattn/go-sqlite3, schema managed by golang-migrate
//   - MemStore: an in-process ordered map (google/btree) for tests and
//     throwaway runs
//
// # Layout
//
//   - artifacts: one row per compiled instrument, looked up by fingerprint
//     and compared on full source text
//   - result_tables: one descriptor per artifact with its fixed parameter
//     names
//   - records_<table>: created lazily on the first insert, one "p_<name>"
//     column per parameter plus seed, count, gravitation and output
//
// # Critical Patterns
//
// Insert-if-absent: artifact and descriptor inserts run in an IMMEDIATE
// transaction that first selects the existing row, so concurrent writers
// converge on one row instead of racing check-then-insert.
//
// Deterministic results: every record query is ordered by id COLLATE BINARY.
//
// Parameterised SQL: values are always bound; identifiers are validated and
// quoted (see querysql).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
