package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"storefront-client/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("no stored session")

type SessionRepository interface {
	Save(ctx context.Context, key string, session *model.Session) error
	Load(ctx context.Context, key string) (*model.Session, error)
	Delete(ctx context.Context, key string) error
}

type sessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepoImpl{
		db: db,
	}
}

func (r *sessionRepoImpl) Save(ctx context.Context, key string, session *model.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payload":    string(payload),
			"updated_at": time.Now(),
		}),
	}).Create(&model.StoredSession{
		Key:       key,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}).Error
}

func (r *sessionRepoImpl) Load(ctx context.Context, key string) (*model.Session, error) {
	var stored model.StoredSession
	err := r.db.WithContext(ctx).
		Where(&model.StoredSession{Key: key}).
		First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal([]byte(stored.Payload), &session); err != nil {
		return nil, fmt.Errorf("decode stored session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepoImpl) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where(&model.StoredSession{Key: key}).
		Delete(&model.StoredSession{}).Error
}
