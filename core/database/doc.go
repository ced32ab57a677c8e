// Package database handles the optional MySQL connection and the sync history store.
//
// It wraps GORM to configure MySQL connections from the application's configuration
// and persists one SyncRecord per engine event (sync, tag deletion, tag rename) so
// operators can see what happened to a library over time.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    logger.Warn("History disabled", zap.Error(err))
//	}
//	repo := database.NewHistoryRepository(db)
//	_ = repo.Migrate()
//	records, err := repo.Recent(ctx, "users/111", 20)
package database
