package reconcile

import "zotero-sync/core/zotero"

// Snapshot is the engine's current belief about a library.
type Snapshot struct {
	// Data holds at most one entity per key, in first-seen order.
	Data []zotero.Entity `json:"data"`

	// LastUpdated is the library version the snapshot reflects. It never moves backwards.
	LastUpdated int `json:"lastUpdated"`
}

// CitekeyLookup reports whether a citekey is referenced locally.
type CitekeyLookup func(citekey string) bool

// Summary counts what a merge changed.
type Summary struct {
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	Retained int `json:"retained"`
}

// Advance returns the next watermark: the larger of the two versions.
func Advance(previous, next int) int {
	if next > previous {
		return next
	}
	return previous
}
