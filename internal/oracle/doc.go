// Package oracle defines the collaborators that answer questions about the
// system under learning, and a few decorators that sit in front of them.
//
// A MembershipOracle answers batches of words with one output per word. The
// contract assumed by the learner:
//   - Deterministic for the lifetime of a run: same word, same output.
//   - Total: every word in the batch gets an answer, in batch order.
//   - Batches may repeat words, and the same word may be asked in later batches.
//
// Errors from an oracle are surfaced to the caller unchanged (wrapped). The
// learner never retries.
//
// Decorators:
//   - Cache: trie-backed deduplication of queries (prefix-sharing storage).
//   - Parallel: splits a batch into chunks answered concurrently via errgroup.
//     Answers are gathered into indexed slots; nothing is returned until every
//     chunk completes.
//   - Counter: counts queries, symbols and batches, exported as Prometheus
//     metrics and as plain counters for tests.
//   - Simulator: answers from a known Transducer (e.g. an automaton.Automaton).
package oracle
