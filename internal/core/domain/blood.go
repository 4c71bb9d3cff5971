package domain

import (
	"fmt"
	"strings"
)

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

var bloodTypes = []BloodType{
	BloodTypeAPos, BloodTypeANeg,
	BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg,
	BloodTypeOPos, BloodTypeONeg,
}

// BloodTypes returns all valid blood types in display order.
func BloodTypes() []BloodType {
	return append([]BloodType(nil), bloodTypes...)
}

func (b BloodType) Valid() bool {
	for _, v := range bloodTypes {
		if v == b {
			return true
		}
	}
	return false
}

// ParseBloodType accepts "O+", "o+", "OPOS" and "O_NEG" style spellings.
func ParseBloodType(s string) (BloodType, error) {
	// form and query decoding turns '+' into a space
	v := strings.ToUpper(strings.TrimRight(s, "\t\n"))
	if t := strings.TrimSpace(v); strings.HasSuffix(v, " ") && !strings.HasSuffix(t, "+") && !strings.HasSuffix(t, "-") {
		v = t + "+"
	}
	v = strings.NewReplacer(" ", "", "_", "", "POS", "+", "NEG", "-").Replace(v)

	bt := BloodType(v)
	if !bt.Valid() {
		return "", NewValidationError("blood_type", fmt.Sprintf("unsupported blood type %q", s))
	}
	return bt, nil
}

// ComponentType is the blood product form. Each has its own shelf life.
type ComponentType string

const (
	ComponentWholeBlood ComponentType = "whole_blood"
	ComponentRBC        ComponentType = "rbc"
	ComponentPlasma     ComponentType = "plasma"
	ComponentPlatelets  ComponentType = "platelets"
)

var componentTypes = []ComponentType{
	ComponentWholeBlood,
	ComponentRBC,
	ComponentPlasma,
	ComponentPlatelets,
}

func ComponentTypes() []ComponentType {
	return append([]ComponentType(nil), componentTypes...)
}

func (c ComponentType) Valid() bool {
	for _, v := range componentTypes {
		if v == c {
			return true
		}
	}
	return false
}

// ParseComponentType fails with ErrUnknownComponentType for anything outside the policy table.
func ParseComponentType(s string) (ComponentType, error) {
	c := ComponentType(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownComponentType, s)
	}
	return c, nil
}
