// Package harness runs reconciliation scenarios against a fresh SQLite
// remote store.
//
// A scenario seeds the store, deploys one or more change lists through the
// engine and then asserts on the journal of remote mutations and on the
// final table contents.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: upsert_by_identity
//	description: "An add whose identity exists becomes an update"
//	id_prefix: rec-
//	setup:
//	  - action: add
//	    type: Account
//	    name: acme
//	    values: {Name: Acme, address: {street: 1 Main, city: Springfield}}
//	flow:
//	  - deploy:
//	      - action: add
//	        type: Account
//	        name: acme
//	        values: {Name: Acme, code: 8, address: {street: 1 Main, city: Springfield}}
//	    expect:
//	      applied: ["modify acme (rec-0001)"]
//	assertions:
//	  - type: trace_count
//	    action: Account.insert
//	    count: 1
//	  - type: final_state
//	    table: Account
//	    where: {Name: Acme}
//	    expect: {Code__c: 8}
//
// Setup changes are deployed first and must all succeed. Each flow step is
// deployed group by group, the way recon deploy does; without an expect
// clause every change of the step must succeed.
//
// # Assertion Types
//
//   - trace_contains: a journaled mutation with the action (Type.operation),
//     and optionally the record id and success flag, exists
//   - trace_order: actions first appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: exactly one row matches where and carries the expected
//     column values
//   - row_count: exactly N rows match where
//
// # Deterministic Testing
//
// Every run uses an in-memory database and sequential record identifiers
// (id_prefix followed by a four digit counter), so traces are identical
// across runs. Within one step, trace events are ordered by action and then
// by journal sequence because the engine issues its insert and update calls
// concurrently.
package harness
