package repositories

import (
	"context"
	"errors"
	"time"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/core/domain"

	"gorm.io/gorm"
)

// unitRepository implements UnitRepository on gorm
type unitRepository struct {
	db *gorm.DB
}

// NewUnitRepository creates a new blood unit repository
func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

func (r *unitRepository) Create(ctx context.Context, unit *domain.BloodUnit) error {
	return translate(r.db.WithContext(ctx).Create(models.NewBloodUnit(unit)).Error)
}

func (r *unitRepository) GetByNumber(ctx context.Context, unitNumber string) (*domain.BloodUnit, error) {
	var row models.BloodUnit
	if err := r.db.WithContext(ctx).Where("unit_number = ?", unitNumber).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	u := row.ToDomain()
	return &u, nil
}

func (r *unitRepository) ListAfter(ctx context.Context, filter domain.UnitFilter, after string, limit int) ([]domain.BloodUnit, error) {
	var rows []models.BloodUnit
	err := applyUnitFilter(r.db.WithContext(ctx), filter).
		Where("unit_number > ?", after).
		Order("unit_number ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unitsToDomain(rows), nil
}

func (r *unitRepository) Page(ctx context.Context, filter domain.UnitFilter, offset, limit int) ([]domain.BloodUnit, int64, error) {
	var total int64
	if err := applyUnitFilter(r.db.WithContext(ctx).Model(&models.BloodUnit{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BloodUnit
	err := applyUnitFilter(r.db.WithContext(ctx), filter).
		Order("unit_number ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return unitsToDomain(rows), total, nil
}

func (r *unitRepository) ListAllocatable(ctx context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time, limit int) ([]domain.BloodUnit, error) {
	var rows []models.BloodUnit
	err := r.allocatable(ctx, bloodType, component, now).
		Order("collected_at ASC, unit_number ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unitsToDomain(rows), nil
}

func (r *unitRepository) CountAllocatable(ctx context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time) (int64, error) {
	var count int64
	err := r.allocatable(ctx, bloodType, component, now).Count(&count).Error
	return count, err
}

func (r *unitRepository) allocatable(ctx context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.BloodUnit{}).
		Where("blood_type = ? AND component_type = ?", bloodType, component).
		Where("status = ?", domain.StatusAvailable).
		Where("expires_at > ?", now)
}

func (r *unitRepository) ListExpiring(ctx context.Context, now time.Time) ([]domain.BloodUnit, error) {
	var rows []models.BloodUnit
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.UnitStatus{domain.StatusAvailable, domain.StatusReserved}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC, unit_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return unitsToDomain(rows), nil
}

// CompareAndSwap updates status, reservation and version in one conditional
// UPDATE and records the history row alongside it.
func (r *unitRepository) CompareAndSwap(ctx context.Context, change domain.StatusChange) (*domain.BloodUnit, error) {
	var updated models.BloodUnit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BloodUnit{}).
			Where("unit_number = ? AND version = ? AND status = ?", change.UnitNumber, change.Version, change.From).
			Updates(map[string]interface{}{
				"status":       change.To,
				"reserved_for": nullable(change.ReservedFor),
				"version":      gorm.Expr("version + 1"),
				"updated_at":   change.At,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.BloodUnit{}).Where("unit_number = ?", change.UnitNumber).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrVersionConflict
		}

		history := &models.UnitHistory{
			UnitNumber:  change.UnitNumber,
			FromStatus:  string(change.From),
			ToStatus:    string(change.To),
			ReservedFor: nullable(change.ReservedFor),
			Reason:      change.Reason,
			At:          change.At,
		}
		if err := tx.Create(history).Error; err != nil {
			return err
		}
		return tx.Where("unit_number = ?", change.UnitNumber).First(&updated).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	u := updated.ToDomain()
	return &u, nil
}

func (r *unitRepository) History(ctx context.Context, unitNumber string) ([]domain.UnitHistory, error) {
	var rows []models.UnitHistory
	err := r.db.WithContext(ctx).
		Where("unit_number = ?", unitNumber).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.UnitHistory, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

func (r *unitRepository) CountByGroup(ctx context.Context) ([]StockCount, error) {
	var rows []struct {
		BloodType     string
		ComponentType string
		Status        string
		Count         int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.BloodUnit{}).
		Select("blood_type, component_type, status, COUNT(*) AS count").
		Group("blood_type, component_type, status").
		Order("blood_type, component_type, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]StockCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, StockCount{
			BloodType:     domain.BloodType(row.BloodType),
			ComponentType: domain.ComponentType(row.ComponentType),
			Status:        domain.UnitStatus(row.Status),
			Count:         row.Count,
		})
	}
	return out, nil
}

func (r *unitRepository) CountExpiringBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BloodUnit{}).
		Where("status IN ?", []domain.UnitStatus{domain.StatusAvailable, domain.StatusReserved}).
		Where("expires_at > ? AND expires_at <= ?", from, to).
		Count(&count).Error
	return count, err
}

func applyUnitFilter(q *gorm.DB, filter domain.UnitFilter) *gorm.DB {
	if filter.BloodType != "" {
		q = q.Where("blood_type = ?", filter.BloodType)
	}
	if filter.ComponentType != "" {
		q = q.Where("component_type = ?", filter.ComponentType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return q
}

func unitsToDomain(rows []models.BloodUnit) []domain.BloodUnit {
	out := make([]domain.BloodUnit, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

// translate maps gorm errors onto the repository error set
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
