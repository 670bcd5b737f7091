package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jilsnshah/alignflow/internal/models"
	"gorm.io/gorm"
)

// DB is the GORM-backed store. One value implements every store interface.
type DB struct {
	db *gorm.DB
}

// NewDB wraps an open GORM connection.
func NewDB(gdb *gorm.DB) *DB {
	return &DB{db: gdb}
}

func (s *DB) GetCase(ctx context.Context, id string) (*models.Case, error) {
	var c models.Case
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: case %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get case %s: %w", id, err)
	}
	return &c, nil
}

func (s *DB) PutCase(ctx context.Context, c *models.Case) error {
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("store: put case %s: %w", c.ID, err)
	}
	return nil
}

func (s *DB) CasesByUser(ctx context.Context, userID string) ([]models.Case, error) {
	var cases []models.Case
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("store: cases for user %s: %w", userID, err)
	}
	return cases, nil
}

func (s *DB) ListCases(ctx context.Context) ([]models.Case, error) {
	var cases []models.Case
	if err := s.db.WithContext(ctx).Order("created_at").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("store: list cases: %w", err)
	}
	return cases, nil
}

func (s *DB) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", userID, err)
	}
	return &sess, nil
}

func (s *DB) PutSession(ctx context.Context, sess *models.Session) error {
	if err := s.db.WithContext(ctx).Save(sess).Error; err != nil {
		return fmt.Errorf("store: put session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *DB) DentistByEmail(ctx context.Context, email string) (*models.Dentist, error) {
	var d models.Dentist
	err := s.db.WithContext(ctx).First(&d, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: dentist %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("store: dentist by email %s: %w", email, err)
	}
	return &d, nil
}

func (s *DB) DentistByUser(ctx context.Context, userID string) (*models.Dentist, error) {
	var d models.Dentist
	err := s.db.WithContext(ctx).First(&d, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: dentist for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: dentist by user %s: %w", userID, err)
	}
	return &d, nil
}

func (s *DB) BindDentist(ctx context.Context, email, userID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Dentist{}).
		Where("email = ?", email).
		Update("user_id", userID)
	if result.Error != nil {
		return fmt.Errorf("store: bind dentist %s: %w", email, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: dentist %s", ErrNotFound, email)
	}
	return nil
}

func (s *DB) LogMessage(ctx context.Context, m *models.MessageLog) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("store: log message for %s: %w", m.UserID, err)
	}
	return nil
}

func (s *DB) LastInbound(ctx context.Context, userID string) (time.Time, error) {
	var m models.MessageLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND direction = ?", userID, "in").
		Order("created_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("%w: no inbound messages for %s", ErrNotFound, userID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: last inbound for %s: %w", userID, err)
	}
	return m.CreatedAt, nil
}

func (s *DB) PutAppointment(ctx context.Context, a *models.Appointment) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return fmt.Errorf("store: put appointment for %s: %w", a.UserID, err)
	}
	return nil
}

func (s *DB) AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("starts_at").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("store: appointments for %s: %w", userID, err)
	}
	return appts, nil
}

func (s *DB) PutImage(ctx context.Context, img *models.CaseImage) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("store: put image for case %s: %w", img.CaseID, err)
	}
	return nil
}

func (s *DB) ImagesByCase(ctx context.Context, caseID string) ([]models.CaseImage, error) {
	var imgs []models.CaseImage
	err := s.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at").
		Find(&imgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: images for case %s: %w", caseID, err)
	}
	return imgs, nil
}
