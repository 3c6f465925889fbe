package repository

import (
	"context"
	"storefront-client/internal/model"
	"time"

	"gorm.io/gorm"
)

type ReconciliationRepository interface {
	Create(ctx context.Context, rec *model.Reconciliation) error
	ListPending(ctx context.Context, limit int) ([]*model.Reconciliation, error)
	MarkResolved(ctx context.Context, id string) error
}

type reconciliationRepoImpl struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepoImpl{
		db: db,
	}
}

func (r *reconciliationRepoImpl) Create(ctx context.Context, rec *model.Reconciliation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *reconciliationRepoImpl) ListPending(ctx context.Context, limit int) ([]*model.Reconciliation, error) {
	var recs []*model.Reconciliation
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ReconciliationPending).
		Order("created_at").
		Limit(limit).
		Find(&recs).Error

	if err != nil {
		return nil, err
	}

	return recs, nil
}

func (r *reconciliationRepoImpl) MarkResolved(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Reconciliation{}).
		Where("id = ? AND status = ?", id, model.ReconciliationPending).
		Updates(map[string]interface{}{
			"status":      model.ReconciliationResolved,
			"resolved_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
