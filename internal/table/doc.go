// Package table implements the observation table at the heart of the
// learner.
//
// The table maps (prefix, suffix) pairs to outputs observed from a
// membership oracle. Prefixes are rows, suffixes are columns. Rows are either
// short prefixes (the states of the next hypothesis) or candidates (a short
// prefix extended by one symbol that is not itself a short prefix).
//
// INVARIANTS:
//   - The empty word is always a short prefix.
//   - Every row has an output for every current suffix.
//   - Candidates are exactly {sp·a : sp short prefix, a in alphabet} minus the
//     short prefixes.
//   - Suffixes and rows only grow. They are never removed or reordered.
//   - No word is sent to the oracle twice by one table.
//
// Closedness and consistency are queries (FindUnclosed, FindInconsistency),
// not invariants: the learner restores them between rounds.
//
// # Gather, then commit
//
// Every growing operation (Initialize, AddSuffixes, Promote,
// AddShortPrefixes) first plans its new rows and columns without touching the
// table, sends all missing words to the oracle as one batch, and commits only
// after every answer is in. An oracle error therefore leaves the table exactly
// as it was. The oracle may answer the batch concurrently (see
// oracle.Parallel); the table itself is owned by one goroutine and has no
// locks.
//
// # Row equivalence
//
// Outputs are interned to small integers. A row's content key is the uvarint
// encoding of its interned content vector, so two rows are equivalent iff
// their keys are equal. Short prefixes are indexed by content key, which
// locates equal-content pairs without a pairwise scan.
//
// # Ordering
//
// Rows are numbered in insertion order. FindUnclosed and FindInconsistency
// walk rows in that order, so identical oracle answers and identical mutation
// sequences always produce identical results.
package table
