package repositories

import (
	"context"
	"time"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reservationRepository implements ReservationRepository on gorm
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	return translate(r.db.WithContext(ctx).Create(models.NewReservation(res)).Error)
}

func (r *reservationRepository) Get(ctx context.Context, requestID string) (*domain.Reservation, error) {
	var row models.Reservation
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	res := row.ToDomain()
	return &res, nil
}

// Claim locks the row, deletes it and hands back what was deleted
func (r *reservationRepository) Claim(ctx context.Context, requestID string) (*domain.Reservation, error) {
	var row models.Reservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", requestID).
			First(&row).Error; err != nil {
			return err
		}
		del := tx.Where("request_id = ?", requestID).Delete(&models.Reservation{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	res := row.ToDomain()
	return &res, nil
}

func (r *reservationRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reservation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

func (r *reservationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reservation{}).Count(&count).Error
	return count, err
}
