package library

import (
	"context"
	"errors"

	"zotero-sync/core/reconcile"
	"zotero-sync/core/storage"
	"zotero-sync/core/zotero"
)

// ArchiveSnapshots stores snapshots as JSON objects, one per library and key identity.
type ArchiveSnapshots struct {
	archive *storage.Archive
}

// NewArchiveSnapshots adapts an archive to SnapshotStore.
func NewArchiveSnapshots(archive *storage.Archive) *ArchiveSnapshots {
	return &ArchiveSnapshots{archive: archive}
}

func snapshotName(lib zotero.Library, identity string) string {
	return lib.Path + "/" + identity + ".json"
}

// LoadSnapshot reads a snapshot; found is false when none was archived.
func (a *ArchiveSnapshots) LoadSnapshot(ctx context.Context, lib zotero.Library, identity string) (reconcile.Snapshot, bool, error) {
	var snap reconcile.Snapshot
	if err := a.archive.Load(ctx, snapshotName(lib, identity), &snap); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reconcile.Snapshot{}, false, nil
		}
		return reconcile.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SaveSnapshot writes a snapshot.
func (a *ArchiveSnapshots) SaveSnapshot(ctx context.Context, lib zotero.Library, identity string, snap reconcile.Snapshot) error {
	return a.archive.Save(ctx, snapshotName(lib, identity), snap)
}

// DeleteSnapshot removes a snapshot.
func (a *ArchiveSnapshots) DeleteSnapshot(ctx context.Context, lib zotero.Library, identity string) error {
	return a.archive.Delete(ctx, snapshotName(lib, identity))
}
