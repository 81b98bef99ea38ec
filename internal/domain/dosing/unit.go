package dosing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnitMismatch signals a dose unit incompatible with a reference range
// basis, where no safe conversion exists.
var ErrUnitMismatch = errors.New("dose unit incompatible with reference range")

// Unit is a canonical dose unit.
type Unit string

const (
	Mg    Unit = "mg"
	Mcg   Unit = "mcg"
	G     Unit = "g"
	MgKg  Unit = "mg/kg"
	McgKg Unit = "mcg/kg"
	MgM2  Unit = "mg/m2"
)

var unitSynonyms = map[string]Unit{
	"mg":         Mg,
	"milligram":  Mg,
	"milligrams": Mg,
	"mcg":        Mcg,
	"ug":         Mcg,
	"µg":         Mcg,
	"microgram":  Mcg,
	"micrograms": Mcg,
	"g":          G,
	"gram":       G,
	"grams":      G,
	"mg/kg":      MgKg,
	"mg per kg":  MgKg,
	"mcg/kg":     McgKg,
	"ug/kg":      McgKg,
	"mg/m2":      MgM2,
	"mg/m^2":     MgM2,
	"mg/m²":      MgM2,
}

// ParseUnit normalizes a free-text unit into a canonical Unit.
func ParseUnit(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := unitSynonyms[key]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unrecognized dose unit %q", s)
}

// PerWeight reports whether the unit is normalized per kilogram of body weight.
func (u Unit) PerWeight() bool { return u == MgKg || u == McgKg }

// PerBSA reports whether the unit is normalized per square meter of body
// surface area.
func (u Unit) PerBSA() bool { return u == MgM2 }

// ToMg converts an absolute dose amount in unit u to milligrams.
// Per-weight and per-BSA units need patient data and are rejected here.
func (u Unit) ToMg(amount float64) (float64, error) {
	switch u {
	case Mg:
		return amount, nil
	case Mcg:
		return amount / 1000, nil
	case G:
		return amount * 1000, nil
	default:
		return 0, fmt.Errorf("%w: %s is not an absolute unit", ErrUnitMismatch, u)
	}
}

// AbsoluteMg resolves a dose in unit u to absolute milligrams for a
// patient with the given weight (kg) and body surface area (m2).
func (u Unit) AbsoluteMg(amount, weightKg, bsaM2 float64) (float64, error) {
	switch u {
	case Mg, Mcg, G:
		return u.ToMg(amount)
	case MgKg:
		if weightKg <= 0 {
			return 0, fmt.Errorf("%w: weight required for %s", ErrUnitMismatch, u)
		}
		return amount * weightKg, nil
	case McgKg:
		if weightKg <= 0 {
			return 0, fmt.Errorf("%w: weight required for %s", ErrUnitMismatch, u)
		}
		return amount * weightKg / 1000, nil
	case MgM2:
		if bsaM2 <= 0 {
			return 0, fmt.Errorf("%w: body surface area required for %s", ErrUnitMismatch, u)
		}
		return amount * bsaM2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnitMismatch, u)
	}
}
