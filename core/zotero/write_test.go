package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writes(n int) []WriteRequest {
	out := make([]WriteRequest, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, WriteRequest{"key": fmt.Sprintf("W%03d", i), "version": i})
	}
	return out
}

// echoOutcome reports every item of a chunk as applied.
func echoOutcome(chunk []WriteRequest) WriteOutcome {
	out := WriteOutcome{Successful: map[string]Entity{}, Success: map[string]string{}}
	for i, r := range chunk {
		key := r["key"].(string)
		out.Success[strconv.Itoa(i)] = key
		out.Successful[strconv.Itoa(i)] = Entity{Key: key, Data: map[string]any(r)}
	}
	return out
}

func TestChunk(t *testing.T) {
	chunks := Chunk(writes(120), WriteChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[1], 50)
	assert.Len(t, chunks[2], 20)
	assert.Equal(t, "W050", chunks[1][0]["key"])

	assert.Empty(t, Chunk(nil, WriteChunkSize))
}

// TestWriteItems_SettlesEachChunk tests that a failed chunk does not affect its siblings.
func TestWriteItems_SettlesEachChunk(t *testing.T) {
	var mu sync.Mutex
	var sizes []int

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/111/items", r.URL.Path)
		assert.Empty(t, r.Header.Get("If-Unmodified-Since-Version"))

		var chunk []WriteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&chunk))
		mu.Lock()
		sizes = append(sizes, len(chunk))
		mu.Unlock()

		if chunk[0]["key"] == "W050" {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(echoOutcome(chunk))
	})

	lib, _ := ParseLibrary("users/111")
	results, err := client.WriteItems(context.Background(), "k", lib, writes(120), WriteOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.ElementsMatch(t, []int{50, 50, 20}, sizes)

	assert.Equal(t, ChunkFulfilled, results[0].Status)
	assert.Len(t, results[0].Outcome.Success, 50)

	assert.Equal(t, ChunkRejected, results[1].Status)
	assert.Nil(t, results[1].Outcome)
	var netErr *NetworkError
	require.True(t, errors.As(results[1].Err, &netErr))
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)

	assert.Equal(t, ChunkFulfilled, results[2].Status)
	assert.Len(t, results[2].Outcome.Success, 20)

	assert.Equal(t, BatchSummary{Chunks: 3, Rejected: 1, Success: 70}, Summarize(results))

	var partial *PartialBatchFailure
	require.True(t, errors.As(PartialFailure(results), &partial))
	assert.Equal(t, []int{1}, partial.RejectedChunks)
	assert.Equal(t, 70, partial.Applied)
}

// TestWriteItems_Scenario tests a single applied write and the structured outcome.
func TestWriteItems_Scenario(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"successful":{"0":{"key":"X","version":6,"data":{"key":"X","version":6,"tags":[{"tag":"T"}]}}},"success":{"0":"X"},"unchanged":{},"failed":{}}`))
	})

	lib, _ := ParseLibrary("users/111")
	req := WriteRequest{"key": "X", "version": 5, "tags": []map[string]any{{"tag": "T"}}}
	results, err := client.WriteItems(context.Background(), "k", lib, []WriteRequest{req}, WriteOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	out := results[0].Outcome
	require.NotNil(t, out)
	assert.Equal(t, map[string]string{"0": "X"}, out.Success)
	assert.Empty(t, out.Failed)
	assert.Empty(t, out.Unchanged)
	assert.Equal(t, []TagRecord{{Tag: "T"}}, out.Successful["0"].Tags())
	assert.NoError(t, PartialFailure(results))
}

func TestWriteItems_ItemConflicts(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":{"0":"A"},"unchanged":{"1":"B"},"failed":{"2":{"key":"C","code":412,"message":"Item has been modified since specified version"},"3":{"code":400,"message":"bad field"}}}`))
	})

	lib, _ := ParseLibrary("users/111")
	reqs := []WriteRequest{
		{"key": "A", "version": 1},
		{"key": "B", "version": 1},
		{"key": "C", "version": 3},
		{"key": "D", "version": 4},
	}
	results, err := client.WriteItems(context.Background(), "k", lib, reqs, WriteOptions{})
	require.NoError(t, err)

	conflicts := Conflicts(results)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "C", conflicts[0].Key)
	assert.Equal(t, 3, conflicts[0].Version)

	var partial *PartialBatchFailure
	require.True(t, errors.As(PartialFailure(results), &partial))
	assert.Empty(t, partial.RejectedChunks)
	assert.Contains(t, partial.FailedItems, "C")
	assert.Contains(t, partial.FailedItems, "D")
	assert.Equal(t, 2, partial.Applied)
}

// TestConflicts_NumericOrder tests that conflicts follow payload order past index 9.
func TestConflicts_NumericOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"failed":{"10":{"code":412,"message":"modified"},"2":{"code":412,"message":"modified"}}}`))
	})

	lib, _ := ParseLibrary("users/111")
	results, err := client.WriteItems(context.Background(), "k", lib, writes(11), WriteOptions{})
	require.NoError(t, err)

	conflicts := Conflicts(results)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "W002", conflicts[0].Key)
	assert.Equal(t, 2, conflicts[0].Version)
	assert.Equal(t, "W010", conflicts[1].Key)
	assert.Equal(t, 10, conflicts[1].Version)
}

func TestWriteItems_LibraryVersionHeader(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "33", r.Header.Get("If-Unmodified-Since-Version"))
		http.Error(w, "modified", http.StatusPreconditionFailed)
	})

	lib, _ := ParseLibrary("users/111")
	results, err := client.WriteItems(context.Background(), "k", lib, writes(1), WriteOptions{LibraryVersion: 33})
	require.NoError(t, err)

	var conflict *ConflictError
	require.True(t, errors.As(results[0].Err, &conflict))
	assert.Equal(t, 33, conflict.Version)
}

func TestWriteItems_Validation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no call expected")
	})
	lib, _ := ParseLibrary("users/111")

	tests := []struct {
		name string
		req  WriteRequest
	}{
		{"missing key", WriteRequest{"version": 1}},
		{"missing version", WriteRequest{"key": "A"}},
		{"empty key", WriteRequest{"key": "", "version": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.WriteItems(context.Background(), "k", lib, []WriteRequest{tt.req}, WriteOptions{})
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}

	_, err := client.WriteItems(context.Background(), "k", Library{}, writes(1), WriteOptions{})
	assert.Error(t, err)
}

func TestChunkResult_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(ChunkResult{Index: 1, Status: ChunkRejected, Err: errors.New("boom")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1,"status":"rejected","reason":"boom"}`, string(b))
}
