package repositories

import (
	"context"
	"time"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/core/domain"

	"gorm.io/gorm"
)

// requestRepository implements RequestRepository on gorm
type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new hospital request repository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	return translate(r.db.WithContext(ctx).Create(models.NewRequest(req)).Error)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	var row models.Request
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	req := row.ToDomain()
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, status domain.RequestStatus, offset, limit int) ([]domain.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Request{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Request
	if err := query.Order("created_at DESC, id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]domain.Request, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RequestStatus, reason string, at time.Time) (*domain.Request, error) {
	var row models.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     to,
			"updated_at": at,
		}
		if reason != "" {
			updates["reason"] = reason
		}
		res := tx.Model(&models.Request{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Request{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrVersionConflict
		}
		return tx.Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	req := row.ToDomain()
	return &req, nil
}
