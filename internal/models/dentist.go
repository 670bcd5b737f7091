package models

import "time"

// Dentist is an authorized practitioner allowed to submit cases.
type Dentist struct {
	Email     string `gorm:"primaryKey;size:128"`
	Name      string `gorm:"size:128;not null"`
	Clinic    string `gorm:"size:128"`
	License   string `gorm:"size:64"`
	UserID    string `gorm:"size:64;index"`
	CreatedAt time.Time
}

// Appointment is a booked scanning slot for a case submission.
type Appointment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:64;not null;index"`
	CaseID    string    `gorm:"size:64;index"`
	StartsAt  time.Time `gorm:"not null;index"`
	Location  string    `gorm:"size:128"`
	EventID   string    `gorm:"size:128"` // calendar event reference
	CreatedAt time.Time
}
