// Package tags indexes and edits the tags of a synced library.
//
// # Index
//
// BuildMap groups raw tag records by string (exact duplicates collapse, type variants
// stay apart), BuildDictionary buckets strings by initial, and Categorize clusters the
// spellings of each bucket into tokens: "Housing" and "housing" end up in one token
// with two records. The Service caches the resulting Listing per library and watermark;
// a sync that sees changes invalidates it.
//
// # Mutations
//
//   - Delete: removes at most 50 tags per call, guarded by If-Unmodified-Since-Version.
//   - Rename: rewrites the tags of the regular items of the cached snapshot and writes
//     only the items that change, in chunks, reporting each chunk's outcome.
//
// Both publish an event (tags-deleted, tags-modified) and drop the cached tag index.
package tags
