package repository

import (
	"context"
	"errors"

	"github.com/s-uryansh/convoo/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// MessageRepository persists room chat history. The coordinator only ever
// needs insert, a bounded ascending read, a count, and set deletion.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	RecentAscending(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Count(ctx context.Context, roomID string) (int, error)
	OldestIDs(ctx context.Context, roomID string, n int) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomRepository persists room records created by the room-creation endpoint.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, roomID string) (*domain.Room, error)
}
