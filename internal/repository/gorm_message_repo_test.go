package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/s-uryansh/convoo/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.MessageModel{}, &domain.RoomModel{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM messages")
		db.Exec("DELETE FROM rooms")
	})
	return db
}

func seedMessages(t *testing.T, repo *GormMessageRepository, roomID string, n int) []domain.Message {
	t.Helper()

	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	msgs := make([]domain.Message, n)
	for i := 0; i < n; i++ {
		msg := domain.Message{
			ID:     fmt.Sprintf("%s-msg-%03d", roomID, i),
			RoomID: roomID,
			Sender: "alice",
			Text:   fmt.Sprintf("text-%d", i),
			SentAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Insert(context.Background(), &msg))
		msgs[i] = msg
	}
	return msgs
}

func TestInsertAndRecentAscending(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 5)

	got, err := repo.RecentAscending(ctx, "r1", 15)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("text-%d", i), m.Text)
		assert.Equal(t, "alice", m.Sender)
	}
}

func TestRecentAscendingReturnsNewestWindow(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 30)

	got, err := repo.RecentAscending(ctx, "r1", 15)
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, "text-15", got[0].Text)
	assert.Equal(t, "text-29", got[14].Text)
}

func TestRecentAscendingScopedToRoom(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 3)
	seedMessages(t, repo, "r2", 2)

	got, err := repo.RecentAscending(ctx, "r1", 15)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	empty, err := repo.RecentAscending(ctx, "r3", 15)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTrimCycle(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 18)

	count, err := repo.Count(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 18, count)

	ids, err := repo.OldestIDs(ctx, "r1", count-15)
	require.NoError(t, err)
	require.Equal(t, []string{"r1-msg-000", "r1-msg-001", "r1-msg-002"}, ids)

	require.NoError(t, repo.DeleteByIDs(ctx, ids))

	count, err = repo.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 15, count)

	got, err := repo.RecentAscending(ctx, "r1", 15)
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, "text-3", got[0].Text)
}

func TestDeleteByIDsEmptyIsNoop(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 2)
	require.NoError(t, repo.DeleteByIDs(ctx, nil))

	count, err := repo.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeleteRoomPurgesOnlyThatRoom(t *testing.T) {
	repo := NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()

	seedMessages(t, repo, "r1", 4)
	seedMessages(t, repo, "r2", 2)

	require.NoError(t, repo.DeleteRoom(ctx, "r1"))

	count, err := repo.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.Count(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRoomRepositoryAssignsID(t *testing.T) {
	repo := NewGormRoomRepository(newTestDB(t))
	ctx := context.Background()

	room := &domain.Room{Creator: "alice"}
	require.NoError(t, repo.Create(ctx, room))
	assert.Len(t, room.RoomID, 8)
	assert.Equal(t, "alice", room.Creator)

	got, err := repo.GetByID(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, room.RoomID, got.RoomID)

	_, err = repo.GetByID(ctx, "missing1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
