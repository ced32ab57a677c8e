package reconcile

import (
	"strings"

	"zotero-sync/core/zotero"
)

// Merge folds a modified set and a deleted key set into a previous snapshot.
func Merge(modified []zotero.Entity, deleted []string, previous []zotero.Entity, lookup CitekeyLookup) []zotero.Entity {
	out, _ := MergeWithSummary(modified, deleted, previous, lookup)
	return out
}

// MergeWithSummary is Merge plus a count of what changed.
func MergeWithSummary(modified []zotero.Entity, deleted []string, previous []zotero.Entity, lookup CitekeyLookup) ([]zotero.Entity, Summary) {
	var summary Summary

	gone := make(map[string]struct{}, len(deleted))
	for _, key := range deleted {
		gone[key] = struct{}{}
	}

	// Latest version per key wins when the modified set repeats a key
	latest := make(map[string]zotero.Entity, len(modified))
	for _, m := range modified {
		if cur, ok := latest[m.Key]; ok && cur.Version > m.Version {
			continue
		}
		latest[m.Key] = m
	}

	out := make([]zotero.Entity, 0, len(previous)+len(modified))
	seen := make(map[string]struct{}, len(previous)+len(modified))

	for _, e := range previous {
		if _, dup := seen[e.Key]; dup {
			continue
		}
		if _, ok := gone[e.Key]; ok {
			summary.Removed++
			continue
		}
		seen[e.Key] = struct{}{}
		if m, ok := latest[e.Key]; ok {
			out = append(out, annotate(m, lookup, true))
			summary.Updated++
			continue
		}
		out = append(out, annotate(e, lookup, false))
		summary.Retained++
	}

	for _, m := range modified {
		if _, ok := seen[m.Key]; ok {
			continue
		}
		if _, ok := gone[m.Key]; ok {
			continue
		}
		seen[m.Key] = struct{}{}
		out = append(out, annotate(latest[m.Key], lookup, true))
		summary.Added++
	}

	return out, summary
}

// annotate sets HasCitekey when the entity changed or was never annotated.
func annotate(e zotero.Entity, lookup CitekeyLookup, changed bool) zotero.Entity {
	if lookup == nil {
		return e
	}
	if !changed && e.HasCitekey != nil {
		return e
	}
	has := lookup(Citekey(e))
	e.HasCitekey = &has
	return e
}

// Citekey returns the entity's citation key: a "Citation Key:" line in data.extra
// when present, the entity key otherwise.
func Citekey(e zotero.Entity) string {
	if extra, ok := e.Data["extra"].(string); ok {
		for _, line := range strings.Split(extra, "\n") {
			if rest, found := strings.CutPrefix(strings.TrimSpace(line), "Citation Key:"); found {
				if ck := strings.TrimSpace(rest); ck != "" {
					return ck
				}
			}
		}
	}
	return e.Key
}
