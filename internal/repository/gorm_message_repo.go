package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Insert persists a new message.
func (r *GormMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, msg.RoomID).Msg("failed to insert message")
		return result.Error
	}

	msg.SentAt = model.SentAt
	return nil
}

// RecentAscending returns the `limit` most recent messages of a room,
// ordered ascending by send time.
func (r *GormMessageRepository) RecentAscending(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	// The newest `limit` rows, then flipped to chronological order.
	sub := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit)

	var models []domain.MessageModel
	if err := r.db.WithContext(ctx).
		Table("(?) AS recent", sub).
		Order("sent_at ASC").Order("id ASC").
		Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to fetch history")
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Count returns the number of stored messages for a room.
func (r *GormMessageRepository) Count(ctx context.Context, roomID string) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID).
		Count(&count)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to count messages")
		return 0, result.Error
	}
	return int(count), nil
}

// OldestIDs returns the IDs of the n oldest messages of a room.
func (r *GormMessageRepository) OldestIDs(ctx context.Context, roomID string, n int) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID).
		Order("sent_at ASC").Order("id ASC").
		Limit(n).
		Pluck("id", &ids)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to select oldest messages")
		return nil, result.Error
	}
	return ids, nil
}

// DeleteByIDs removes the messages with the given IDs.
func (r *GormMessageRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.MessageModel{})
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Msg("failed to delete messages")
	}
	return result.Error
}

// DeleteRoom removes every stored message of a room. Called by the
// empty-room reaper once the idle TTL elapses.
func (r *GormMessageRepository) DeleteRoom(ctx context.Context, roomID string) error {
	result := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.MessageModel{})
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to purge room messages")
	}
	return result.Error
}
