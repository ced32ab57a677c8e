package library

import (
	"context"
	"time"

	"zotero-sync/core/database"
	"zotero-sync/core/events"

	"go.uber.org/zap"
)

// HistoryRecorder persists every published event as a sync history record.
type HistoryRecorder struct {
	repo    *database.HistoryRepository
	logger  *zap.Logger
	timeout time.Duration
}

// NewHistoryRecorder creates a recorder writing through repo.
func NewHistoryRecorder(repo *database.HistoryRepository, logger *zap.Logger) *HistoryRecorder {
	return &HistoryRecorder{repo: repo, logger: logger, timeout: 5 * time.Second}
}

// Start subscribes to bus and records events in the background until the returned stop function is called.
func (r *HistoryRecorder) Start(bus *events.Bus) func() {
	ch, unsubscribe := bus.Channel(256)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range ch {
			r.record(e)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (r *HistoryRecorder) record(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	rec := &database.SyncRecord{
		EventID:   e.ID,
		Type:      e.Type,
		Library:   e.Library,
		Since:     e.Since,
		Version:   e.Version,
		Success:   e.Success,
		Error:     e.Error,
		CreatedAt: e.At,
	}
	if err := r.repo.Record(ctx, rec); err != nil {
		r.logger.Warn("Failed to record history", zap.String("event", e.ID), zap.Error(err))
	}
}
