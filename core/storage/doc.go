// Package storage persists library snapshots in S3-compatible object storage.
//
// Client is a JSON document store bound to one bucket, backed by MinIO (mocked in
// core/storage/mocks). It owns the bucket, the JSON content type and the mapping of
// missing objects to ErrNotFound. Archive sits on top of it, saving and loading values
// by name under a fixed prefix. The library feature uses it to restore a snapshot when
// the in-memory cache is cold, so a restart does not force a full resync.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	archive := storage.NewArchive(client, "snapshots", logger)
//	if err := archive.EnsureBucket(ctx); err != nil { ... }
//	err = archive.Save(ctx, "users/111/3f2a.json", snapshot)
//	err = archive.Load(ctx, "users/111/3f2a.json", &snapshot) // storage.ErrNotFound when absent
package storage
