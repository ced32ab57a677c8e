// Package library keeps local snapshots of remote libraries in step with the remote.
//
// The Syncer implements the incremental protocol: it fetches every entity modified
// since the caller's watermark (paginating through the client when needed), fetches
// the deleted keys when the watermark is non-zero, invalidates a stale tag index,
// merges both sets into the previous snapshot and advances the watermark. A read
// failure aborts the whole sync with a *SyncError; nothing is applied.
//
// Snapshots live in the dependent cache and, when configured, in the object store
// archive so a restarted process resumes from its last watermark. Each sync publishes
// an "update" event; the HistoryRecorder persists events through the database package.
//
// # Routes
//
//	POST   /libraries/:type/:id/sync     {"since": 10}
//	GET    /libraries/:type/:id/items
//	GET    /libraries/:type/:id/history
//	DELETE /libraries/:type/:id
//	PUT    /citekeys                     {"citekeys": ["smith2020"]}
package library
