package library

import (
	"testing"
	"time"

	"zotero-sync/core/database"
	"zotero-sync/core/events"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestHistoryRecorder_RecordsEvents(t *testing.T) {
	db, mock := setupMockDB(t)
	bus := events.NewBus(zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sync_history`").
		WithArgs("evt-1", events.TypeUpdate, "users/111", 10, 12, true, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	recorder := NewHistoryRecorder(database.NewHistoryRepository(db), zap.NewNop())
	stop := recorder.Start(bus)

	bus.Publish(events.Event{ID: "evt-1", Type: events.TypeUpdate, Library: "users/111", Since: 10, Version: 12, Success: true, At: time.Now()})
	stop()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRecorder_SurvivesDatabaseErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	bus := events.NewBus(zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sync_history`").WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sync_history`").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	recorder := NewHistoryRecorder(database.NewHistoryRepository(db), zap.NewNop())
	stop := recorder.Start(bus)

	bus.Publish(events.Event{ID: "evt-1", Type: events.TypeUpdate, Library: "users/111"})
	bus.Publish(events.Event{ID: "evt-2", Type: events.TypeTagsDeleted, Library: "users/111"})
	stop()

	require.NoError(t, mock.ExpectationsWereMet())
}
