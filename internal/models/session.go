package models

import "time"

// Session tracks one dentist-user's conversational position, independent of
// any single case. Created on first contact and never deleted.
type Session struct {
	UserID       string `gorm:"primaryKey;size:64"`
	CurrentStage string `gorm:"size:32;default:awaiting_email;index"`

	// ActiveCase is a weak reference by ID to the case currently under
	// discussion. Required when CurrentStage is a case-scoped stage.
	ActiveCase *string `gorm:"size:64"`

	DentistEmail string `gorm:"size:128"`

	// ImageCount accumulates uploads during the awaiting_images stage and
	// resets when the submission completes.
	ImageCount int `gorm:"default:0"`

	// PendingSlot holds the appointment time awaiting user confirmation
	// during the scheduling stage, RFC 3339 formatted.
	PendingSlot string `gorm:"size:40"`

	LastActivity time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
