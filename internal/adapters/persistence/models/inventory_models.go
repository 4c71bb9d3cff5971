package models

import (
	"time"

	"bloodbank/internal/core/domain"
)

// ============================================================
// Inventory tables
// ============================================================

// BloodUnit represents the blood_units table
type BloodUnit struct {
	UnitNumber      string    `gorm:"primaryKey;size:40"`
	DonorID         string    `gorm:"size:36;index;not null"`
	DonationID      *string   `gorm:"size:36;index"`
	BloodType       string    `gorm:"size:3;not null;index:idx_units_alloc,priority:1"`
	ComponentType   string    `gorm:"size:20;not null;index:idx_units_alloc,priority:2"`
	Status          string    `gorm:"size:12;not null;index:idx_units_alloc,priority:3;index:idx_units_expiry,priority:1"`
	CollectedAt     time.Time `gorm:"not null;index:idx_units_alloc,priority:4"`
	ExpiresAt       time.Time `gorm:"not null;index:idx_units_expiry,priority:2"`
	VolumeML        int       `gorm:"not null"`
	StorageLocation string    `gorm:"size:100"`
	ReservedFor     *string   `gorm:"size:64;index"`
	LabResults      []byte    `gorm:"type:json"`
	Version         int64     `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BloodUnit) TableName() string {
	return "blood_units"
}

func NewBloodUnit(u *domain.BloodUnit) *BloodUnit {
	return &BloodUnit{
		UnitNumber:      u.UnitNumber,
		DonorID:         u.DonorID,
		DonationID:      optional(u.DonationID),
		BloodType:       string(u.BloodType),
		ComponentType:   string(u.ComponentType),
		Status:          string(u.Status),
		CollectedAt:     u.CollectedAt,
		ExpiresAt:       u.ExpiresAt,
		VolumeML:        u.VolumeML,
		StorageLocation: u.StorageLocation,
		ReservedFor:     optional(u.ReservedFor),
		LabResults:      u.LabResults,
		Version:         u.Version,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (m *BloodUnit) ToDomain() domain.BloodUnit {
	return domain.BloodUnit{
		UnitNumber:      m.UnitNumber,
		DonorID:         m.DonorID,
		DonationID:      deref(m.DonationID),
		BloodType:       domain.BloodType(m.BloodType),
		ComponentType:   domain.ComponentType(m.ComponentType),
		VolumeML:        m.VolumeML,
		CollectedAt:     m.CollectedAt,
		ExpiresAt:       m.ExpiresAt,
		StorageLocation: m.StorageLocation,
		Status:          domain.UnitStatus(m.Status),
		ReservedFor:     deref(m.ReservedFor),
		LabResults:      m.LabResults,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// UnitHistory represents the blood_unit_history table (one row per applied transition)
type UnitHistory struct {
	ID          uint      `gorm:"primaryKey"`
	UnitNumber  string    `gorm:"size:40;index;not null"`
	FromStatus  string    `gorm:"size:12;not null"`
	ToStatus    string    `gorm:"size:12;not null"`
	ReservedFor *string   `gorm:"size:64"`
	Reason      string    `gorm:"size:100"`
	At          time.Time `gorm:"not null"`
}

func (UnitHistory) TableName() string {
	return "blood_unit_history"
}

func (m *UnitHistory) ToDomain() domain.UnitHistory {
	return domain.UnitHistory{
		UnitNumber:  m.UnitNumber,
		From:        domain.UnitStatus(m.FromStatus),
		To:          domain.UnitStatus(m.ToStatus),
		ReservedFor: deref(m.ReservedFor),
		Reason:      m.Reason,
		At:          m.At,
	}
}

// Donor represents the donors table
type Donor struct {
	ID               string `gorm:"primaryKey;size:36"`
	FullName         string `gorm:"size:100;not null"`
	Phone            string `gorm:"size:20"`
	BloodType        string `gorm:"size:3;not null;index"`
	IsEligible       bool   `gorm:"not null;index"`
	LastDonationDate *time.Time
	TotalDonations   int `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Donor) TableName() string {
	return "donors"
}

func NewDonor(d *domain.Donor) *Donor {
	return &Donor{
		ID:               d.ID,
		FullName:         d.FullName,
		Phone:            d.Phone,
		BloodType:        string(d.BloodType),
		IsEligible:       d.IsEligible,
		LastDonationDate: d.LastDonationDate,
		TotalDonations:   d.TotalDonations,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (m *Donor) ToDomain() domain.Donor {
	return domain.Donor{
		ID:               m.ID,
		FullName:         m.FullName,
		Phone:            m.Phone,
		BloodType:        domain.BloodType(m.BloodType),
		IsEligible:       m.IsEligible,
		LastDonationDate: m.LastDonationDate,
		TotalDonations:   m.TotalDonations,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// Donation represents the donations table
type Donation struct {
	ID        string    `gorm:"primaryKey;size:36"`
	DonorID   string    `gorm:"size:36;index;not null"`
	DonatedAt time.Time `gorm:"not null"`
	VolumeML  int       `gorm:"not null"`
	CreatedAt time.Time
}

func (Donation) TableName() string {
	return "donations"
}

// Request represents the blood_requests table
type Request struct {
	ID            string `gorm:"primaryKey;size:36"`
	Hospital      string `gorm:"size:150;not null"`
	BloodType     string `gorm:"size:3;not null"`
	ComponentType string `gorm:"size:20;not null"`
	UnitsNeeded   int    `gorm:"not null"`
	Status        string `gorm:"size:12;not null;index"`
	Reason        string `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Request) TableName() string {
	return "blood_requests"
}

func NewRequest(r *domain.Request) *Request {
	return &Request{
		ID:            r.ID,
		Hospital:      r.Hospital,
		BloodType:     string(r.BloodType),
		ComponentType: string(r.ComponentType),
		UnitsNeeded:   r.UnitsNeeded,
		Status:        string(r.Status),
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (m *Request) ToDomain() domain.Request {
	return domain.Request{
		ID:            m.ID,
		Hospital:      m.Hospital,
		BloodType:     domain.BloodType(m.BloodType),
		ComponentType: domain.ComponentType(m.ComponentType),
		UnitsNeeded:   m.UnitsNeeded,
		Status:        domain.RequestStatus(m.Status),
		Reason:        m.Reason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// Reservation represents the unit_reservations table. Rows live only while the hold is active.
type Reservation struct {
	RequestID     string    `gorm:"primaryKey;size:64"`
	BloodType     string    `gorm:"size:3;not null"`
	ComponentType string    `gorm:"size:20;not null"`
	UnitNumbers   []string  `gorm:"serializer:json;type:json"`
	CreatedAt     time.Time `gorm:"not null"`
	ExpiresAt     time.Time `gorm:"not null;index"`
}

func (Reservation) TableName() string {
	return "unit_reservations"
}

func NewReservation(r *domain.Reservation) *Reservation {
	return &Reservation{
		RequestID:     r.RequestID,
		BloodType:     string(r.BloodType),
		ComponentType: string(r.ComponentType),
		UnitNumbers:   append([]string(nil), r.UnitNumbers...),
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
	}
}

func (m *Reservation) ToDomain() domain.Reservation {
	return domain.Reservation{
		RequestID:     m.RequestID,
		BloodType:     domain.BloodType(m.BloodType),
		ComponentType: domain.ComponentType(m.ComponentType),
		UnitNumbers:   append([]string(nil), m.UnitNumbers...),
		CreatedAt:     m.CreatedAt,
		ExpiresAt:     m.ExpiresAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
