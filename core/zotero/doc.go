// Package zotero provides the remote side of the library synchronization engine.
//
// It speaks the Zotero Web API (v3) over HTTP and exposes the primitives the
// engine is built from. Every call carries the API key header and returns
// typed errors; nothing in this package retries.
//
// # Components
//
//   - PageFetcher (Client.FetchPage): requests one window of entities and parses the
//     Total-Results and Last-Modified-Version headers (missing or invalid values are 0).
//   - FullCollector (Client.CollectRemaining, Client.FetchAll): fans out the remaining
//     pages at a stride of PageLimit once the first page reports more results than fit.
//   - BatchWriter (Client.WriteItems): splits writes into chunks of at most WriteChunkSize,
//     posts every chunk concurrently and settles one ChunkResult per chunk.
//   - Tag and deletion endpoints used by the engine (FetchDeleted, DeleteTags).
//
// # Errors
//
//   - NetworkError: transport failure or non-2xx response.
//   - ConflictError: a version precondition did not hold (HTTP 412 or a failed write item with code 412).
//   - ValidationError: malformed input (missing key/version, missing tag/type).
//   - PartialBatchFailure: some chunks or items of a write failed while others were applied.
//
// # Usage
//
//	client := zotero.NewClient(cfg.Zotero, logger)
//	lib, _ := zotero.ParseLibrary("users/111")
//	page, err := client.FetchPage(ctx, zotero.PageRequest{Endpoint: lib.Path + "/items", APIKey: key})
//	results, err := client.WriteItems(ctx, key, lib, requests, zotero.WriteOptions{})
package zotero
