// Package retrieval runs the five memory-search strategies and fans
// them out concurrently.
//
// Each strategy implements one way of finding candidate memories:
//
//   - vector: embedding similarity against the vector index
//   - keyword: BM25 over the owner's memory text
//   - entity: graph lookup through the owner's known entities
//   - profile: the owner's profile facts, always included
//   - recent: newest episodic memories, decayed by age
//
// Strategies return raw, un-normalized scores; normalization and
// blending belong to the ranking package. The Orchestrator runs all
// strategies in parallel with a per-strategy timeout and treats any
// single failure as an empty contribution, so one degraded backend
// never fails the whole retrieval.
package retrieval
