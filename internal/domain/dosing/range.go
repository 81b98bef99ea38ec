package dosing

import "fmt"

// Period is the reference period of a dose range.
type Period string

const (
	PerDay  Period = "day"
	PerWeek Period = "week"
)

// Basis describes how a reference range scales with the patient.
type Basis string

const (
	// ByWeight means the range is expressed per kilogram of body weight.
	ByWeight Basis = "weight"
	// ByBSA means the range is expressed per square meter of body surface area.
	ByBSA Basis = "bsa"
	// Flat means the range is an absolute amount independent of the patient.
	Flat Basis = "flat"
)

// SafeRange is a published pediatric reference range for one drug and route.
// Min and Max are per basis unit (mg/kg, mg/m2, or plain mg for Flat) over
// the stated Period. MaxAbsolute, when positive, caps the resolved upper
// bound in absolute milligrams regardless of patient size.
type SafeRange struct {
	MinPerUnit  float64
	MaxPerUnit  float64
	MaxAbsolute float64
	Basis       Basis
	Period      Period
	Citation    string
}

// Bounds is a SafeRange resolved against one patient, in absolute mg per
// the range's period.
type Bounds struct {
	MinMg  float64
	MaxMg  float64
	Period Period
	// Capped is set when MaxAbsolute lowered the scaled upper bound.
	Capped   bool
	Citation string
}

// Resolve converts the range to absolute milligram bounds for a patient
// with the given weight (kg) and body surface area (m2).
func (r SafeRange) Resolve(weightKg, bsaM2 float64) (Bounds, error) {
	var scale float64
	switch r.Basis {
	case ByWeight:
		if weightKg <= 0 {
			return Bounds{}, fmt.Errorf("%w: weight required for weight-based range", ErrUnitMismatch)
		}
		scale = weightKg
	case ByBSA:
		if bsaM2 <= 0 {
			return Bounds{}, fmt.Errorf("%w: body surface area required for BSA-based range", ErrUnitMismatch)
		}
		scale = bsaM2
	case Flat:
		scale = 1
	default:
		return Bounds{}, fmt.Errorf("unknown range basis %q", r.Basis)
	}

	b := Bounds{
		MinMg:    r.MinPerUnit * scale,
		MaxMg:    r.MaxPerUnit * scale,
		Period:   r.Period,
		Citation: r.Citation,
	}
	if r.MaxAbsolute > 0 && b.MaxMg > r.MaxAbsolute {
		b.MaxMg = r.MaxAbsolute
		b.Capped = true
	}
	return b, nil
}
