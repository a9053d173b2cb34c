// Package patchwork applies JSON Patch (RFC 6902) documents to stored
// document graphs.
//
// A document is a typed map of fields that may reference other documents.
// Patches address fields with JSON Pointers and may traverse references:
// "/books/0/title" edits the title of the first book an author links to.
// The engine resolves and loads references on demand, guards blacklisted
// paths, passes every operation through a middleware chain, and commits all
// touched documents together with optimistic revision checks.
//
// Storage is pluggable through core.Store:
//
//   - **fs**: one JSON or YAML file per document, optionally versioned with Git.
//   - **redis**: atomic multi-document commits with WATCH/MULTI and pub/sub events.
//   - **memory**: in-process, for tests and dry runs.
//
// Usage:
//
//	ws, err := patchwork.New("./data",
//		patchwork.WithAutoInit(true),
//		patchwork.WithSchemas(&core.Schema{Type: "author", References: map[string]string{"/books": "book"}}),
//	)
//
//	p, err := patch.Decode([]byte(`[{"op":"add","path":"/books/-","value":{"title":"The Hobbit"}}]`))
//	res, err := ws.Engine.ApplyByID(ctx, "author", "tolkien", p)
//
//	// Undo it.
//	_, err = ws.Engine.Revert(ctx, res)
package patchwork
