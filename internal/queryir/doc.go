// Package queryir provides the abstract lookup query representation used to
// fetch remote records by identity values.
//
// ARCHITECTURE:
//
// The lookup path builds a Query per batch of local instances and hands it
// to a dialect compiler (package querysql) that renders query text for the
// remote store:
//
//	[instances] → [Query IR] → [querysql dialect] → query string
//
// SHAPE:
//
// Lookup queries have a single fixed shape, an over-fetching disjunction of
// per-instance conjunctions:
//
//	SELECT Id, c1, c2 FROM Type WHERE (c1 = v1 AND c2 = v2) OR (c1 = v3 AND c2 IS NULL)
//
// Rows matching only part of one clause never come back, but a row can match
// a clause built for a different instance that shares the same values. The
// matcher disambiguates by full identity hash, so over-fetching is safe.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods so compilers can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case IsNull:
//	case And:
//	case Or:
//	}
//
// All literal values are ir.IRValue; compilers decide how to render them.
package queryir
