package repository

import (
	"context"
	"errors"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
)

const roomIDLength = 8

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create assigns a fresh room ID and persists the room record.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	id, err := gonanoid.New(roomIDLength)
	if err != nil {
		return err
	}
	room.RoomID = id

	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create room in db")
		return result.Error
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.RoomID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room record by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "room_id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
