package config

import (
	"context"
	"errors"
	"log"
	"time"

	"bloodbank/internal/core/services"
)

// Seeder creates the first admin account and, in dev mode, a handful of donors and units
type Seeder struct {
	staff  *services.StaffService
	donors *services.DonorService
	now    func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(staff *services.StaffService, donors *services.DonorService) *Seeder {
	return &Seeder{staff: staff, donors: donors, now: time.Now}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context, cfg *Config) error {
	log.Println("🌱 Running seeders...")

	if err := s.seedAdminUser(ctx); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	if cfg.IsDev() {
		if err := s.seedSampleStock(ctx); err != nil {
			log.Printf("⚠️ Sample stock seeder skipped: %v", err)
		}
	}

	log.Println("✅ Seeding completed")
	return nil
}

// seedAdminUser creates the admin account once. Change the password after first login.
func (s *Seeder) seedAdminUser(ctx context.Context) error {
	_, err := s.staff.Create(ctx, &services.CreateStaffInput{
		Username: getEnv("ADMIN_USERNAME", "admin"),
		FullName: "Blood Bank Administrator",
		Password: getEnv("ADMIN_PASSWORD", "admin123456"),
		Role:     "ADMIN",
	})
	if errors.Is(err, services.ErrUserAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Println("✅ Admin user created")
	return nil
}

type sampleDonor struct {
	name      string
	bloodType string
	component string
	daysAgo   int
}

// seedSampleStock registers donors and collects one unit from each, spread over the
// past weeks so the dashboard shows some expiring and some expired stock.
func (s *Seeder) seedSampleStock(ctx context.Context) error {
	_, total, err := s.donors.List(ctx, 0, 1)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	samples := []sampleDonor{
		{name: "Somchai Rattana", bloodType: "O+", component: "whole_blood", daysAgo: 40},
		{name: "Malee Suksan", bloodType: "O+", component: "rbc", daysAgo: 10},
		{name: "Anan Thongdee", bloodType: "A+", component: "whole_blood", daysAgo: 3},
		{name: "Kanya Boonmee", bloodType: "B-", component: "platelets", daysAgo: 6},
		{name: "Preecha Wong", bloodType: "AB+", component: "plasma", daysAgo: 90},
		{name: "Suda Chaiyo", bloodType: "O-", component: "whole_blood", daysAgo: 1},
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	for _, sd := range samples {
		donor, err := s.donors.Register(ctx, services.RegisterDonorInput{FullName: sd.name, BloodType: sd.bloodType})
		if err != nil {
			return err
		}
		res, err := s.donors.Collect(ctx, donor.ID, services.CollectInput{
			DonationDate:    today.AddDate(0, 0, -sd.daysAgo),
			VolumeML:        450,
			ComponentType:   sd.component,
			StorageLocation: "MAIN-FRIDGE-A",
		})
		if err != nil {
			return err
		}
		log.Printf("   Created unit: %s (%s %s)", res.Unit.UnitNumber, sd.bloodType, sd.component)
	}
	return nil
}
