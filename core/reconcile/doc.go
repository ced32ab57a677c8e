// Package reconcile merges incremental deltas into a previously cached library snapshot.
//
// A sync round trip yields two sets: the entities modified since the last watermark
// and the keys deleted since then. Merge folds both into the previous snapshot and
// returns the next one, without touching its inputs:
//
//   - entities whose key was deleted are removed (deletion wins over a modification
//     reported in the same cycle);
//   - entities with a modified counterpart are replaced in place by it;
//   - modified entities unknown to the snapshot are appended, in arrival order;
//   - everything else keeps its position.
//
// # Cross-reference annotation
//
// Each entity carries a HasCitekey flag computed from a CitekeyLookup supplied by the
// caller. The lookup runs only for entities that are new, replaced, or were never
// annotated, so an unchanged snapshot is not re-scanned on every sync.
//
// # Usage
//
//	next := reconcile.Merge(modified, deleted.Items, previous.Data, registry.Has)
//	snapshot := reconcile.Snapshot{Data: next, LastUpdated: reconcile.Advance(previous.LastUpdated, version)}
package reconcile
