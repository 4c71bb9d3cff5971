package repositories

import (
	"context"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/core/domain"

	"gorm.io/gorm"
)

// donorRepository implements DonorRepository on gorm
type donorRepository struct {
	db *gorm.DB
}

// NewDonorRepository creates a new donor repository
func NewDonorRepository(db *gorm.DB) DonorRepository {
	return &donorRepository{db: db}
}

func (r *donorRepository) Create(ctx context.Context, donor *domain.Donor) error {
	return translate(r.db.WithContext(ctx).Create(models.NewDonor(donor)).Error)
}

func (r *donorRepository) GetByID(ctx context.Context, id string) (*domain.Donor, error) {
	var row models.Donor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	d := row.ToDomain()
	return &d, nil
}

func (r *donorRepository) List(ctx context.Context, offset, limit int) ([]domain.Donor, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Donor{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Donor
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return donorsToDomain(rows), total, nil
}

// RecordDonation is a single transaction: the eligibility-guarded donor update
// and the donation insert commit together or not at all.
func (r *donorRepository) RecordDonation(ctx context.Context, donation *domain.Donation) (*domain.Donor, error) {
	var donor models.Donor
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Donor{}).
			Where("id = ? AND is_eligible = ?", donation.DonorID, true).
			Updates(map[string]interface{}{
				"last_donation_date": donation.DonatedAt,
				"total_donations":    gorm.Expr("total_donations + 1"),
				"is_eligible":        false,
				"updated_at":         donation.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Donor{}).Where("id = ?", donation.DonorID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrConditionFailed
		}

		row := &models.Donation{
			ID:        donation.ID,
			DonorID:   donation.DonorID,
			DonatedAt: donation.DonatedAt,
			VolumeML:  donation.VolumeML,
			CreatedAt: donation.CreatedAt,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", donation.DonorID).First(&donor).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	d := donor.ToDomain()
	return &d, nil
}

func (r *donorRepository) ListIneligible(ctx context.Context) ([]domain.Donor, error) {
	var rows []models.Donor
	err := r.db.WithContext(ctx).
		Where("is_eligible = ?", false).
		Order("last_donation_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return donorsToDomain(rows), nil
}

func (r *donorRepository) SetEligible(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Donor{}).
		Where("id = ? AND is_eligible = ?", id, false).
		Update("is_eligible", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

func donorsToDomain(rows []models.Donor) []domain.Donor {
	out := make([]domain.Donor, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
