// Package engine reconciles a group of local changes against a remote
// record store.
//
// A Deploy call receives changes of a single record type and a single
// action kind. Additions are matched against existing remote records by
// identity hash and become inserts (no match) or updates (match, upsert);
// removals become deletes; modifications become updates once their
// identifiers are checked for stability.
//
// Flow of an Add group:
//
//  1. identity.Resolver expands the IdentitySpec into remote columns
//  2. querysql.Builder renders the lookup queries
//  3. queries run concurrently; rows are concatenated
//  4. Match partitions instances into existing and new
//  5. Executor issues one insert and one update bulk call
//  6. results are folded into a DeployOutcome
//
// Classification and hashing never touch the network. The only suspension
// points are remote.Client calls. A transport failure in any of them fails
// the whole call; per-record failures reported by the store are collected
// as outcome errors and never abort sibling records.
package engine
