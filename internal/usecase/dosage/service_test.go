package dosage

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
)

func TestCanonicalDrug(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantKnown bool
	}{
		{in: "methotrexate", want: "methotrexate", wantKnown: true},
		{in: "Metotrexato", want: "methotrexate", wantKnown: true},
		{in: "MTX", want: "methotrexate", wantKnown: true},
		{in: "Tylenol", want: "paracetamol", wantKnown: true},
		{in: "acetaminophen", want: "paracetamol", wantKnown: true},
		{in: "Humira", want: "adalimumab", wantKnown: true},
		{in: " ibuprofeno ", want: "ibuprofen", wantKnown: true},
		{in: "vancomycin", want: "vancomycin", wantKnown: false},
	}
	for _, tt := range tests {
		got, known := CanonicalDrug(tt.in)
		if got != tt.want || known != tt.wantKnown {
			t.Errorf("CanonicalDrug(%q) = (%q, %v), want (%q, %v)", tt.in, got, known, tt.want, tt.wantKnown)
		}
	}
}

func TestResolve_MethotrexateWeekly(t *testing.T) {
	s := New(zap.NewNop())

	// 10 mg weekly for a 25 kg patient. Range 0.3-0.6 mg/kg/week resolves
	// to 7.5-15 mg/week.
	req := dosing.Request{
		DrugName:         "metotrexato",
		DoseAmount:       10,
		DoseUnit:         dosing.Mg,
		Frequency:        dosing.Frequency{IntervalHours: 168},
		PatientAgeMonths: 96,
		PatientWeightKg:  25,
	}

	res, err := s.Resolve(&req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CanonicalDrug != "methotrexate" {
		t.Errorf("canonical = %q", res.CanonicalDrug)
	}
	if math.Abs(res.Bounds.MinMg-7.5) > 1e-9 || math.Abs(res.Bounds.MaxMg-15) > 1e-9 {
		t.Errorf("bounds = [%v, %v], want [7.5, 15]", res.Bounds.MinMg, res.Bounds.MaxMg)
	}
	if res.TotalMg != 10 {
		t.Errorf("total = %v, want 10", res.TotalMg)
	}
	if res.Bounds.Capped {
		t.Error("25 kg patient should not hit the 25 mg absolute cap")
	}
}

func TestResolve_MethotrexateBSAPreferredWithHeight(t *testing.T) {
	s := New(zap.NewNop())

	// 25 kg and 144 cm give a Mosteller BSA of exactly 1.0 m2, so the
	// 10-15 mg/m2/week range resolves to 10-15 mg/week.
	req := dosing.Request{
		DrugName:         "methotrexate",
		DoseAmount:       12,
		DoseUnit:         dosing.Mg,
		Frequency:        dosing.Frequency{IntervalHours: 168},
		PatientAgeMonths: 96,
		PatientWeightKg:  25,
		PatientHeightCm:  144,
	}

	res, err := s.Resolve(&req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Bounds.MinMg-10) > 1e-9 || math.Abs(res.Bounds.MaxMg-15) > 1e-9 {
		t.Errorf("bounds = [%v, %v], want BSA range [10, 15]", res.Bounds.MinMg, res.Bounds.MaxMg)
	}
	if res.Bounds.Period != dosing.PerWeek {
		t.Errorf("period = %v, want week", res.Bounds.Period)
	}
}

func TestResolve_MethotrexateAbsoluteCap(t *testing.T) {
	s := New(zap.NewNop())

	// 60 kg adolescent: 0.6 mg/kg/week would be 36 mg, capped at 25.
	req := dosing.Request{
		DrugName:         "methotrexate",
		DoseAmount:       20,
		DoseUnit:         dosing.Mg,
		Frequency:        dosing.Frequency{IntervalHours: 168},
		PatientAgeMonths: 192,
		PatientWeightKg:  60,
	}

	res, err := s.Resolve(&req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Bounds.MaxMg != 25 {
		t.Errorf("max = %v, want capped 25", res.Bounds.MaxMg)
	}
	if !res.Bounds.Capped {
		t.Error("expected Capped flag")
	}
}

func TestResolve_ParacetamolDailyTotal(t *testing.T) {
	s := New(zap.NewNop())

	// 15 mg/kg every 6 hours for 20 kg: 1200 mg/day against 600-1500 mg/day.
	req := dosing.Request{
		DrugName:         "acetaminophen",
		DoseAmount:       15,
		DoseUnit:         dosing.MgKg,
		Frequency:        dosing.Frequency{IntervalHours: 6},
		PatientAgeMonths: 60,
		PatientWeightKg:  20,
	}

	res, err := s.Resolve(&req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Bounds.Period != dosing.PerDay {
		t.Errorf("period = %v, want day", res.Bounds.Period)
	}
	if res.TotalMg != 1200 {
		t.Errorf("total = %v, want 1200", res.TotalMg)
	}
	if math.Abs(res.Bounds.MinMg-600) > 1e-9 || math.Abs(res.Bounds.MaxMg-1500) > 1e-9 {
		t.Errorf("bounds = [%v, %v], want [600, 1500]", res.Bounds.MinMg, res.Bounds.MaxMg)
	}
}

func TestResolve_AdalimumabWeightBands(t *testing.T) {
	s := New(zap.NewNop())

	tests := []struct {
		name     string
		weightKg float64
		wantMin  float64
		wantMax  float64
	}{
		{name: "under 30 kg band", weightKg: 22, wantMin: 10, wantMax: 10},
		{name: "30 kg and over band", weightKg: 34, wantMin: 20, wantMax: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := dosing.Request{
				DrugName:         "humira",
				DoseAmount:       20,
				DoseUnit:         dosing.Mg,
				Frequency:        dosing.Frequency{IntervalHours: 336},
				PatientAgeMonths: 108,
				PatientWeightKg:  tt.weightKg,
			}
			res, err := s.Resolve(&req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Bounds.MinMg != tt.wantMin || res.Bounds.MaxMg != tt.wantMax {
				t.Errorf("bounds = [%v, %v], want [%v, %v]",
					res.Bounds.MinMg, res.Bounds.MaxMg, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestResolve_UnknownDrug(t *testing.T) {
	s := New(zap.NewNop())

	req := dosing.Request{
		DrugName:         "vancomycin",
		DoseAmount:       500,
		DoseUnit:         dosing.Mg,
		Frequency:        dosing.Frequency{IntervalHours: 8},
		PatientAgeMonths: 120,
		PatientWeightKg:  30,
	}

	res, err := s.Resolve(&req)
	if !errors.Is(err, domain.ErrUnknownDrug) {
		t.Fatalf("expected ErrUnknownDrug, got %v", err)
	}
	if res.CanonicalDrug != "vancomycin" {
		t.Errorf("canonical fallback = %q, want lowercase input", res.CanonicalDrug)
	}
}

func TestResolve_InvalidRequest(t *testing.T) {
	s := New(zap.NewNop())

	req := dosing.Request{DrugName: "methotrexate"}
	if _, err := s.Resolve(&req); err == nil {
		t.Fatal("expected validation error")
	}
}
