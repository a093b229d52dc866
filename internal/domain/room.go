package domain

import "time"

// Room is a persisted room record, created once by the room-creation endpoint.
// Live membership is not stored here; it lives in the hub for the lifetime of
// the process.
type Room struct {
	RoomID    string    `json:"roomId"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	RoomID    string    `gorm:"type:varchar(36);primaryKey"`
	Creator   string    `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		RoomID:    m.RoomID,
		Creator:   m.Creator,
		CreatedAt: m.CreatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		RoomID:    r.RoomID,
		Creator:   r.Creator,
		CreatedAt: r.CreatedAt,
	}
}
