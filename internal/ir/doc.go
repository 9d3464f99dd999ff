// Package ir provides the canonical intermediate representation shared by
// every recon package: constrained values, insertion-ordered objects, record
// type schemas, local instances and the changes handed to the engine.
//
// This package imports nothing internal. All other internal packages import
// ir, which keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Object key order is significant. Identity hashing walks objects in
//     insertion order, never sorted order.
//   - Null and absence collapse to the same canonical sentinel.
//   - Numbers are int64 unless they carry a fractional part. Integral floats
//     are normalized to IRInt before hashing.
//   - All JSON tags use snake_case.
package ir
