// Package identity expands a record type's identity fields into remote
// columns and extracts the ordered identity values that feed the matching
// hash, from both local instances and fetched remote rows.
//
// Compound fields are expanded through a fixed naming rule of the remote
// store: each sub-field lives in a column named after the sub-field with its
// first letter upper-cased (street -> Street). Generated queries only resolve
// when this rule is reproduced exactly.
package identity
