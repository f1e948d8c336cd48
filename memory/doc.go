// Package memory defines the memory record model and the collaborator
// interfaces of the retrieval pipeline.
//
// A Memory is a typed fact about one owner: a profile attribute, a
// semantic fact, an episodic summary, or a procedural pattern. Records
// are created and mutated by an external persistence layer; this SDK
// treats them as read-only snapshots for the duration of a request.
//
// Architecture:
//   - Store: CRUD/query persistence backend (SQLite for local SDK,
//     managed Postgres in production)
//   - VectorIndex: similarity search backend (chromem-go for local SDK,
//     a hosted vector database in production)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX
//     all-MiniLM-L6-v2 for local SDK, API embedders in production)
//
// Every Store and VectorIndex operation is scoped to exactly one owner.
// Owner filtering is a precondition of each backend query, never a
// post-filter, so memories can never cross tenants.
package memory
