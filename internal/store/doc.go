// Package store provides a SQLite-backed reference remote store.
//
// The store implements remote.Client: one table per record type, keyed by
// an "Id" TEXT primary key, plus a journal of every bulk mutation. It
// accepts lookup queries rendered with querysql.SQLiteDialect.
//
// # Bulk semantics
//
// Each bulk call runs in one transaction. Every record gets its own
// savepoint, so a failing record (unknown column, missing row) is rolled
// back alone and reported in its Result while siblings commit. Only a
// failure of the call itself (unknown table, cancelled context) is
// returned as an error.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Record type tables are created by EnsureTable from the compiled schema;
// columns added to a type later are appended with ALTER TABLE.
package store
