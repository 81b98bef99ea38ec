package dosing

import (
	"fmt"
	"math"
	"strings"
)

// maxPediatricAgeMonths is the upper bound of the accepted patient age,
// 21 years expressed in months.
const maxPediatricAgeMonths = 252

// Request is a structured prescription to be checked against a reference
// range. It is produced by the extraction stage or supplied directly.
type Request struct {
	DrugName   string
	DoseAmount float64
	DoseUnit   Unit
	Frequency  Frequency
	Route      string

	PatientAgeMonths float64
	PatientWeightKg  float64
	PatientHeightCm  float64
}

// Validate checks internal consistency of the request.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.DrugName) == "" {
		return fmt.Errorf("drug name is required")
	}
	if r.DoseAmount <= 0 {
		return fmt.Errorf("dose amount must be positive")
	}
	if r.DoseUnit == "" {
		return fmt.Errorf("dose unit is required")
	}
	if r.Frequency.IntervalHours <= 0 {
		return fmt.Errorf("dosing frequency is required")
	}
	if r.PatientAgeMonths < 0 || r.PatientAgeMonths > maxPediatricAgeMonths {
		return fmt.Errorf("patient age %.0f months outside pediatric range", r.PatientAgeMonths)
	}
	if r.PatientWeightKg < 0 {
		return fmt.Errorf("patient weight must be non-negative")
	}
	if (r.DoseUnit.PerWeight()) && r.PatientWeightKg == 0 {
		return fmt.Errorf("patient weight required for unit %s", r.DoseUnit)
	}
	return nil
}

// BSA returns the patient's body surface area in m2 by the Mosteller
// formula, or 0 when height or weight is missing.
func (r *Request) BSA() float64 {
	if r.PatientWeightKg <= 0 || r.PatientHeightCm <= 0 {
		return 0
	}
	return math.Sqrt(r.PatientHeightCm * r.PatientWeightKg / 3600)
}

// TotalMgPer resolves the prescribed dose to absolute milligrams over the
// given reference period, accounting for unit and schedule.
func (r *Request) TotalMgPer(p Period) (float64, error) {
	perDose, err := r.DoseUnit.AbsoluteMg(r.DoseAmount, r.PatientWeightKg, r.BSA())
	if err != nil {
		return 0, err
	}
	return perDose * r.Frequency.DosesPer(p), nil
}
