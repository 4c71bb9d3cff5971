package domain

import (
	"fmt"
	"strings"
	"time"
)

// Donor is the slice of donor data the inventory core reads and writes.
// Only the eligibility tracker changes IsEligible, LastDonationDate and TotalDonations.
type Donor struct {
	ID               string     `json:"id"`
	FullName         string     `json:"full_name"`
	Phone            string     `json:"phone,omitempty"`
	BloodType        BloodType  `json:"blood_type"`
	IsEligible       bool       `json:"is_eligible"`
	LastDonationDate *time.Time `json:"last_donation_date,omitempty"`
	TotalDonations   int        `json:"total_donations"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Donation records one accepted donation.
type Donation struct {
	ID        string    `json:"id"`
	DonorID   string    `json:"donor_id"`
	DonatedAt time.Time `json:"donation_date"`
	VolumeML  int       `json:"volume_ml"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestStatus is the fulfilment state of a hospital request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected, RequestCancelled},
	RequestApproved: {RequestFulfilled, RequestRejected, RequestCancelled, RequestPending},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestFulfilled, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unsupported request status %q", s))
	}
	return st, nil
}

// Request is a hospital's ask for a number of units of one blood type.
type Request struct {
	ID            string        `json:"id"`
	Hospital      string        `json:"hospital"`
	BloodType     BloodType     `json:"blood_type"`
	ComponentType ComponentType `json:"component_type"`
	UnitsNeeded   int           `json:"units_needed"`
	Status        RequestStatus `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Reservation is an exclusive hold of units for one request. It is removed
// as soon as it is committed, released or its hold time runs out.
type Reservation struct {
	RequestID     string        `json:"request_id"`
	BloodType     BloodType     `json:"blood_type"`
	ComponentType ComponentType `json:"component_type"`
	UnitNumbers   []string      `json:"unit_numbers"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

func (r Reservation) HoldExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
