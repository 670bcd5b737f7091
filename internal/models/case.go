package models

import "time"

// Case is one patient's aligner-production record. Status is the single
// source of truth for what happens next in the production workflow.
type Case struct {
	ID          string `gorm:"primaryKey;size:64"`
	UserID      string `gorm:"size:64;not null;index"`
	PatientName string `gorm:"size:128"`
	DentistName string `gorm:"size:128"`
	Status      string `gorm:"size:32;default:New;index"`

	// DeliveryStatus is a free-form courier string, only meaningful while
	// the case sits in a delivery-waiting status.
	DeliveryStatus string `gorm:"size:64"`

	TrackingIDTraining string `gorm:"size:64"`
	TrackingIDFinal    string `gorm:"size:64"`
	TrackingSite       string `gorm:"size:128"`
	Notes              string `gorm:"type:text"`
	Priority           string `gorm:"size:16;default:Normal"`

	// Audit stamps written by every workflow engine invocation that
	// resolved this case.
	LastWorkflowRun *time.Time
	LastActionType  string `gorm:"size:32"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Images []CaseImage `gorm:"foreignKey:CaseID"`
}

// CaseImage records one uploaded scan/photo attached to a case during
// submission, with the public link handed to the ops team.
type CaseImage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	CaseID    string `gorm:"size:64;index"`
	UserID    string `gorm:"size:64;index"`
	PublicURL string `gorm:"size:512"`
	MimeType  string `gorm:"size:64"`
	CreatedAt time.Time
}
