package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"zotero-sync/core/utils"

	"go.uber.org/zap"
)

// WriteOptions tunes a batch write.
type WriteOptions struct {
	// LibraryVersion, when > 0, is sent as If-Unmodified-Since-Version on every chunk.
	// Leave it at 0 to rely on the per-item version check only.
	LibraryVersion int
}

// Chunk splits writes into consecutive groups of at most size elements.
func Chunk(reqs []WriteRequest, size int) [][]WriteRequest {
	if size <= 0 {
		size = WriteChunkSize
	}
	var chunks [][]WriteRequest
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		chunks = append(chunks, reqs[start:end])
	}
	return chunks
}

// WriteItems posts partial updates for a library in chunks of WriteChunkSize.
// All chunks are dispatched concurrently and each one settles on its own: a failed
// call is reported in its ChunkResult and does not affect the others. The returned
// error is non-nil only when the batch cannot be dispatched at all.
func (c *Client) WriteItems(ctx context.Context, apiKey string, lib Library, reqs []WriteRequest, opts WriteOptions) ([]ChunkResult, error) {
	if lib.Path == "" {
		return nil, &ValidationError{Field: "library", Err: fmt.Errorf("library path is required")}
	}
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	chunks := Chunk(reqs, WriteChunkSize)
	results := make([]ChunkResult, len(chunks))

	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for i, chunk := range chunks {
		go func() {
			defer wg.Done()
			results[i] = c.writeChunk(ctx, apiKey, lib, i, chunk, opts)
		}()
	}
	wg.Wait()

	summary := Summarize(results)
	c.metrics.ObserveWrites(summary.Success, summary.Unchanged, summary.Failed, summary.Rejected)
	c.logger.Info("Batch write settled",
		zap.String("library", lib.Path),
		zap.Int("items", len(reqs)),
		zap.Int("chunks", summary.Chunks),
		zap.Int("rejected_chunks", summary.Rejected),
		zap.Int("success", summary.Success),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed))

	return results, nil
}

func (c *Client) writeChunk(ctx context.Context, apiKey string, lib Library, index int, chunk []WriteRequest, opts WriteOptions) ChunkResult {
	result := ChunkResult{Index: index, Payload: chunk}

	var h http.Header
	if opts.LibraryVersion > 0 {
		h = http.Header{}
		h.Set(headerIfUnmodifiedVer, strconv.Itoa(opts.LibraryVersion))
	}

	resp, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: lib.Path + "/items",
		apiKey:   apiKey,
		body:     chunk,
		header:   h,
	})
	if err != nil {
		if resp != nil && resp.status == http.StatusPreconditionFailed {
			err = &ConflictError{Version: opts.LibraryVersion, Message: string(resp.body)}
		}
		c.logger.Warn("Write chunk rejected", zap.String("library", lib.Path), zap.Int("chunk", index), zap.Error(err))
		result.Status = ChunkRejected
		result.Err = err
		return result
	}

	var outcome WriteOutcome
	if err := json.Unmarshal(resp.body, &outcome); err != nil {
		result.Status = ChunkRejected
		result.Err = &ValidationError{Field: "write response", Value: lib.Path, Err: err}
		return result
	}
	outcome.normalize()

	result.Status = ChunkFulfilled
	result.Outcome = &outcome
	return result
}

func keyAt(chunk []WriteRequest, idx string) string {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(chunk) {
		return idx
	}
	return utils.ToString(chunk[i]["key"])
}

func versionAt(chunk []WriteRequest, idx string) int {
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i >= len(chunk) {
		return 0
	}
	return utils.ToInt(chunk[i]["version"])
}
