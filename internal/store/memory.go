package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jilsnshah/alignflow/internal/models"
)

// Memory is a map-backed store guarded by a single mutex. It backs the
// offline simulator and tests that do not need a database.
type Memory struct {
	mu           sync.Mutex
	cases        map[string]models.Case
	sessions     map[string]models.Session
	dentists     map[string]models.Dentist
	messages     []models.MessageLog
	appointments []models.Appointment
	images       []models.CaseImage
	nextID       uint
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cases:    make(map[string]models.Case),
		sessions: make(map[string]models.Session),
		dentists: make(map[string]models.Dentist),
	}
}

func (m *Memory) GetCase(ctx context.Context, id string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: case %s", ErrNotFound, id)
	}
	return &c, nil
}

func (m *Memory) PutCase(ctx context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	m.cases[c.ID] = *c
	return nil
}

func (m *Memory) CasesByUser(ctx context.Context, userID string) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Case
	for _, c := range m.cases {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListCases(ctx context.Context) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Case, 0, len(m.cases))
	for _, c := range m.cases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, userID)
	}
	return &s, nil
}

func (m *Memory) PutSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	m.sessions[s.UserID] = *s
	return nil
}

func (m *Memory) DentistByEmail(ctx context.Context, email string) (*models.Dentist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dentists[email]
	if !ok {
		return nil, fmt.Errorf("%w: dentist %s", ErrNotFound, email)
	}
	return &d, nil
}

func (m *Memory) DentistByUser(ctx context.Context, userID string) (*models.Dentist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dentists {
		if d.UserID == userID {
			out := d
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: dentist for user %s", ErrNotFound, userID)
}

func (m *Memory) BindDentist(ctx context.Context, email, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dentists[email]
	if !ok {
		return fmt.Errorf("%w: dentist %s", ErrNotFound, email)
	}
	d.UserID = userID
	m.dentists[email] = d
	return nil
}

// SeedDentist inserts a roster entry, for simulator setup.
func (m *Memory) SeedDentist(d models.Dentist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dentists[d.Email] = d
}

func (m *Memory) LogMessage(ctx context.Context, msg *models.MessageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *Memory) LastInbound(ctx context.Context, userID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].UserID == userID && m.messages[i].Direction == "in" {
			return m.messages[i].CreatedAt, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no inbound messages for %s", ErrNotFound, userID)
}

func (m *Memory) PutAppointment(ctx context.Context, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.appointments = append(m.appointments, *a)
	return nil
}

func (m *Memory) AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.appointments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *Memory) PutImage(ctx context.Context, img *models.CaseImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	img.ID = m.nextID
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	m.images = append(m.images, *img)
	return nil
}

func (m *Memory) ImagesByCase(ctx context.Context, caseID string) ([]models.CaseImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseImage
	for _, img := range m.images {
		if img.CaseID == caseID {
			out = append(out, img)
		}
	}
	return out, nil
}
