package store

import (
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/workflow"
)

// CaseSnapshot copies a stored case into the engine's value form.
func CaseSnapshot(c *models.Case) workflow.CaseSnapshot {
	return workflow.CaseSnapshot{
		CaseID:             c.ID,
		UserID:             c.UserID,
		PatientName:        c.PatientName,
		DentistName:        c.DentistName,
		Status:             workflow.CaseStatus(c.Status),
		DeliveryStatus:     c.DeliveryStatus,
		TrackingIDTraining: c.TrackingIDTraining,
		TrackingIDFinal:    c.TrackingIDFinal,
		TrackingSite:       c.TrackingSite,
		Notes:              c.Notes,
		Priority:           c.Priority,
		LastWorkflowRun:    c.LastWorkflowRun,
		LastActionType:     c.LastActionType,
	}
}

// ApplyCase merges an engine-returned snapshot back onto the stored record.
// ID and UserID are immutable and deliberately not copied.
func ApplyCase(c *models.Case, snap workflow.CaseSnapshot) {
	c.PatientName = snap.PatientName
	c.DentistName = snap.DentistName
	c.Status = string(snap.Status)
	c.DeliveryStatus = snap.DeliveryStatus
	c.TrackingIDTraining = snap.TrackingIDTraining
	c.TrackingIDFinal = snap.TrackingIDFinal
	c.TrackingSite = snap.TrackingSite
	c.Notes = snap.Notes
	c.Priority = snap.Priority
	c.LastWorkflowRun = snap.LastWorkflowRun
	c.LastActionType = snap.LastActionType
}

// SessionSnapshot copies a stored session into the engine's value form.
func SessionSnapshot(s *models.Session) workflow.SessionSnapshot {
	return workflow.SessionSnapshot{
		UserID:       s.UserID,
		CurrentStage: workflow.Stage(s.CurrentStage),
		ActiveCase:   s.ActiveCase,
		LastActivity: s.LastActivity,
	}
}

// ApplySession merges an engine-returned snapshot back onto the stored record.
func ApplySession(s *models.Session, snap workflow.SessionSnapshot) {
	s.CurrentStage = string(snap.CurrentStage)
	s.ActiveCase = snap.ActiveCase
	s.LastActivity = snap.LastActivity
}
