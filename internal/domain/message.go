package domain

import "time"

// Message is a chat message as delivered over the wire.
type Message struct {
	ID     string    `json:"id"`
	RoomID string    `json:"roomId"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID     string    `gorm:"type:varchar(36);primaryKey"`
	RoomID string    `gorm:"type:varchar(36);index;not null"`
	Sender string    `gorm:"type:varchar(50);not null"`
	Text   string    `gorm:"type:text;not null"`
	SentAt time.Time `gorm:"index;autoCreateTime"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:     m.ID,
		RoomID: m.RoomID,
		Sender: m.Sender,
		Text:   m.Text,
		SentAt: m.SentAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:     msg.ID,
		RoomID: msg.RoomID,
		Sender: msg.Sender,
		Text:   msg.Text,
		SentAt: msg.SentAt,
	}
}
