package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnitStatus is the lifecycle state of a blood unit.
type UnitStatus string

const (
	StatusAvailable UnitStatus = "available"
	StatusReserved  UnitStatus = "reserved"
	StatusUsed      UnitStatus = "used"
	StatusExpired   UnitStatus = "expired"
	StatusDiscard   UnitStatus = "discard"
)

var unitStatuses = []UnitStatus{StatusAvailable, StatusReserved, StatusUsed, StatusExpired, StatusDiscard}

// unitTransitions is the complete transition table. used and discard have no exits.
var unitTransitions = map[UnitStatus][]UnitStatus{
	StatusAvailable: {StatusReserved, StatusExpired, StatusDiscard},
	StatusReserved:  {StatusAvailable, StatusUsed, StatusExpired},
	StatusExpired:   {StatusDiscard},
}

func UnitStatuses() []UnitStatus {
	return append([]UnitStatus(nil), unitStatuses...)
}

func (s UnitStatus) Valid() bool {
	for _, v := range unitStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s UnitStatus) Terminal() bool {
	return s == StatusUsed || s == StatusDiscard
}

func (s UnitStatus) CanTransitionTo(target UnitStatus) bool {
	for _, next := range unitTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func ParseUnitStatus(s string) (UnitStatus, error) {
	st := UnitStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unsupported status %q", s))
	}
	return st, nil
}

// CheckTransition returns a *TransitionError when from -> to is not in the table.
func CheckTransition(unitNumber string, from, to UnitStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{UnitNumber: unitNumber, From: from, To: to}
	}
	return nil
}

// BloodUnit is a single collected blood product.
type BloodUnit struct {
	UnitNumber      string          `json:"unit_number"`
	DonorID         string          `json:"donor_id"`
	DonationID      string          `json:"donation_id,omitempty"`
	BloodType       BloodType       `json:"blood_type"`
	ComponentType   ComponentType   `json:"component_type"`
	VolumeML        int             `json:"volume_ml"`
	CollectedAt     time.Time       `json:"collection_date"`
	ExpiresAt       time.Time       `json:"expiry_date"`
	StorageLocation string          `json:"storage_location"`
	Status          UnitStatus      `json:"status"`
	ReservedFor     string          `json:"reserved_for,omitempty"`
	LabResults      json.RawMessage `json:"lab_results,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ExpiredAt reports whether the unit's expiry date is at or before now.
func (u BloodUnit) ExpiredAt(now time.Time) bool {
	return !u.ExpiresAt.After(now)
}

// Allocatable reports whether the unit may be handed to a reservation at now.
func (u BloodUnit) Allocatable(now time.Time) bool {
	return u.Status == StatusAvailable && u.ExpiresAt.After(now)
}

// UnitFilter narrows a unit query. Zero fields match everything.
type UnitFilter struct {
	BloodType     BloodType
	ComponentType ComponentType
	Status        UnitStatus
}

func (f UnitFilter) Matches(u BloodUnit) bool {
	if f.BloodType != "" && u.BloodType != f.BloodType {
		return false
	}
	if f.ComponentType != "" && u.ComponentType != f.ComponentType {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	return true
}

// StatusChange is a compare-and-swap request against a unit: it applies only
// while the stored version still equals Version.
type StatusChange struct {
	UnitNumber  string
	Version     int64
	From        UnitStatus
	To          UnitStatus
	ReservedFor string
	Reason      string
	At          time.Time
}

// UnitHistory is one applied transition.
type UnitHistory struct {
	UnitNumber  string     `json:"unit_number"`
	From        UnitStatus `json:"from"`
	To          UnitStatus `json:"to"`
	ReservedFor string     `json:"reserved_for,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	At          time.Time  `json:"at"`
}

// Apply returns a copy of u with the change applied and the version bumped.
func (u BloodUnit) Apply(c StatusChange) BloodUnit {
	u.Status = c.To
	u.ReservedFor = c.ReservedFor
	u.Version++
	u.UpdatedAt = c.At
	return u
}
