// Package store provides persistence for cases, sessions, and the
// supporting records around them. The database-backed implementation is used
// by the server; the in-memory one backs the simulator and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jilsnshah/alignflow/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// CaseStore persists Case records keyed by case ID.
type CaseStore interface {
	GetCase(ctx context.Context, id string) (*models.Case, error)
	PutCase(ctx context.Context, c *models.Case) error
	CasesByUser(ctx context.Context, userID string) ([]models.Case, error)
	ListCases(ctx context.Context) ([]models.Case, error)
}

// SessionStore persists Session records keyed by user ID.
type SessionStore interface {
	GetSession(ctx context.Context, userID string) (*models.Session, error)
	PutSession(ctx context.Context, s *models.Session) error
}

// DentistStore reads the authorized dentist roster and binds chat accounts.
type DentistStore interface {
	DentistByEmail(ctx context.Context, email string) (*models.Dentist, error)
	DentistByUser(ctx context.Context, userID string) (*models.Dentist, error)
	BindDentist(ctx context.Context, email, userID string) error
}

// MessageStore records chat traffic. LastInbound drives the 24-hour
// send-window check.
type MessageStore interface {
	LogMessage(ctx context.Context, m *models.MessageLog) error
	LastInbound(ctx context.Context, userID string) (time.Time, error)
}

// AppointmentStore persists booked scanning slots.
type AppointmentStore interface {
	PutAppointment(ctx context.Context, a *models.Appointment) error
	AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error)
}

// ImageStore persists uploaded case image records.
type ImageStore interface {
	PutImage(ctx context.Context, img *models.CaseImage) error
	ImagesByCase(ctx context.Context, caseID string) ([]models.CaseImage, error)
}
