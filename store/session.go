package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alp4ka/storypager"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultProfile names the session used when none is configured.
const DefaultProfile = "default"

type sessionRecord struct {
	Profile   string `gorm:"primaryKey;size:64"`
	Token     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// SessionRepo keeps one bearer token per profile.
type SessionRepo struct {
	db      *gorm.DB
	profile string
}

var _ storypager.TokenPersister = (*SessionRepo)(nil)

func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db, profile: DefaultProfile}
}

// WithProfile switches the repo to another named session.
func (r *SessionRepo) WithProfile(profile string) *SessionRepo {
	if profile != "" {
		r.profile = profile
	}

	return r
}

// LoadToken - implements storypager.TokenPersister. A missing session is an
// empty token.
func (r *SessionRepo) LoadToken(ctx context.Context) (string, error) {
	var rec sessionRecord

	err := r.db.WithContext(ctx).Where("profile = ?", r.profile).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("cannot load session '%s': %w", r.profile, err)
	}

	return rec.Token, nil
}

// SaveToken - implements storypager.TokenPersister.
func (r *SessionRepo) SaveToken(ctx context.Context, token string) error {
	rec := sessionRecord{
		Profile:   r.profile,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("cannot save session '%s': %w", r.profile, err)
	}

	return nil
}

// ClearToken - implements storypager.TokenPersister.
func (r *SessionRepo) ClearToken(ctx context.Context) error {
	err := r.db.WithContext(ctx).Where("profile = ?", r.profile).Delete(&sessionRecord{}).Error
	if err != nil {
		return fmt.Errorf("cannot clear session '%s': %w", r.profile, err)
	}

	return nil
}
