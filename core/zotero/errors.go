package zotero

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NetworkError reports a transport failure or a non-2xx response.
type NetworkError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConflictError reports a version precondition that did not hold.
// Key is empty for library-level conflicts (If-Unmodified-Since-Version).
type ConflictError struct {
	Key     string
	Version int
	Message string
}

func (e *ConflictError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("library modified since version %d: %s", e.Version, e.Message)
	}
	return fmt.Sprintf("item %s conflicts with version %d: %s", e.Key, e.Version, e.Message)
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PartialBatchFailure reports a write where some chunks or items failed while others succeeded.
type PartialBatchFailure struct {
	// RejectedChunks lists chunk indices whose call failed entirely.
	RejectedChunks []int
	// FailedItems maps entity keys to the remote's rejection.
	FailedItems map[string]FailedWrite
	// Applied counts items reported as success or unchanged.
	Applied int
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("batch write partially failed: %d chunks rejected, %d items failed, %d applied",
		len(e.RejectedChunks), len(e.FailedItems), e.Applied)
}

// BatchSummary aggregates the outcome of a write.
type BatchSummary struct {
	Chunks    int `json:"chunks"`
	Rejected  int `json:"rejected"`
	Success   int `json:"success"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Summarize counts chunk and item outcomes.
func Summarize(results []ChunkResult) BatchSummary {
	s := BatchSummary{Chunks: len(results)}
	for _, r := range results {
		if r.Status != ChunkFulfilled || r.Outcome == nil {
			s.Rejected++
			continue
		}
		s.Success += len(r.Outcome.Success)
		s.Unchanged += len(r.Outcome.Unchanged)
		s.Failed += len(r.Outcome.Failed)
	}
	return s
}

// PartialFailure returns a *PartialBatchFailure when any chunk was rejected or any item failed, nil otherwise.
func PartialFailure(results []ChunkResult) error {
	pf := &PartialBatchFailure{FailedItems: map[string]FailedWrite{}}
	for _, r := range results {
		if r.Status != ChunkFulfilled || r.Outcome == nil {
			pf.RejectedChunks = append(pf.RejectedChunks, r.Index)
			continue
		}
		pf.Applied += len(r.Outcome.Success) + len(r.Outcome.Unchanged)
		for idx, f := range r.Outcome.Failed {
			key := f.Key
			if key == "" {
				key = keyAt(r.Payload, idx)
			}
			pf.FailedItems[key] = f
		}
	}
	if len(pf.RejectedChunks) == 0 && len(pf.FailedItems) == 0 {
		return nil
	}
	sort.Ints(pf.RejectedChunks)
	return pf
}

// Conflicts extracts the version conflicts reported inside fulfilled chunks.
func Conflicts(results []ChunkResult) []*ConflictError {
	var out []*ConflictError
	for _, r := range results {
		if r.Outcome == nil {
			continue
		}
		idxs := make([]string, 0, len(r.Outcome.Failed))
		for idx := range r.Outcome.Failed {
			idxs = append(idxs, idx)
		}
		sortIndices(idxs)
		for _, idx := range idxs {
			f := r.Outcome.Failed[idx]
			if f.Code != 412 {
				continue
			}
			key := f.Key
			if key == "" {
				key = keyAt(r.Payload, idx)
			}
			out = append(out, &ConflictError{Key: key, Version: versionAt(r.Payload, idx), Message: f.Message})
		}
	}
	return out
}

// sortIndices orders outcome indices numerically. Non-numeric ones go last.
func sortIndices(idxs []string) {
	sort.Slice(idxs, func(i, j int) bool {
		a, errA := strconv.Atoi(idxs[i])
		b, errB := strconv.Atoi(idxs[j])
		switch {
		case errA != nil && errB != nil:
			return idxs[i] < idxs[j]
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
}
