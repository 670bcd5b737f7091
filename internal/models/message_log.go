package models

import "time"

// MessageLog records every inbound and outbound chat message. The inbound
// rows drive the 24-hour send-window check for templated outbound sends.
type MessageLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:64;not null;index"`
	Direction string `gorm:"size:8;not null"` // "in" or "out"
	Body      string `gorm:"type:text"`
	CaseID    string `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"index"`
}
