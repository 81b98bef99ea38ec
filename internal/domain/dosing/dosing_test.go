package dosing

import (
	"errors"
	"math"
	"testing"
)

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{in: "mg", want: Mg},
		{in: " MG ", want: Mg},
		{in: "milligrams", want: Mg},
		{in: "mcg", want: Mcg},
		{in: "ug", want: Mcg},
		{in: "g", want: G},
		{in: "mg/kg", want: MgKg},
		{in: "mg/m2", want: MgM2},
		{in: "mg/m^2", want: MgM2},
		{in: "tablets", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseUnit(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUnit(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseUnit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUnitAbsoluteMg(t *testing.T) {
	tests := []struct {
		name     string
		unit     Unit
		amount   float64
		weightKg float64
		bsaM2    float64
		want     float64
		wantErr  bool
	}{
		{name: "mg passthrough", unit: Mg, amount: 500, want: 500},
		{name: "mcg to mg", unit: Mcg, amount: 250, want: 0.25},
		{name: "g to mg", unit: G, amount: 1.5, want: 1500},
		{name: "mg/kg scaled", unit: MgKg, amount: 10, weightKg: 25, want: 250},
		{name: "mcg/kg scaled", unit: McgKg, amount: 500, weightKg: 20, want: 10},
		{name: "mg/m2 scaled", unit: MgM2, amount: 15, bsaM2: 0.8, want: 12},
		{name: "mg/kg without weight", unit: MgKg, amount: 10, wantErr: true},
		{name: "mg/m2 without bsa", unit: MgM2, amount: 15, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.unit.AbsoluteMg(tt.amount, tt.weightKg, tt.bsaM2)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrUnitMismatch) {
					t.Errorf("expected ErrUnitMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AbsoluteMg = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in        string
		wantHours float64
		wantErr   bool
	}{
		{in: "daily", wantHours: 24},
		{in: "Once Daily", wantHours: 24},
		{in: "bid", wantHours: 12},
		{in: "twice daily", wantHours: 12},
		{in: "tid", wantHours: 8},
		{in: "weekly", wantHours: 168},
		{in: "once a week", wantHours: 168},
		{in: "every other week", wantHours: 336},
		{in: "q2w", wantHours: 336},
		{in: "every 6 hours", wantHours: 6},
		{in: "q8h", wantHours: 8},
		{in: "diario", wantHours: 24},
		{in: "Una Vez Al Día", wantHours: 24},
		{in: "dos veces al dia", wantHours: 12},
		{in: "semanal", wantHours: 168},
		{in: "una vez a la semana", wantHours: 168},
		{in: "cada dos semanas", wantHours: 336},
		{in: "cada 8 horas", wantHours: 8},
		{in: "whenever", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFrequency(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFrequency(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFrequency(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got.IntervalHours != tt.wantHours {
			t.Errorf("ParseFrequency(%q) = %v hours, want %v", tt.in, got.IntervalHours, tt.wantHours)
		}
	}
}

func TestFrequencyDosesPer(t *testing.T) {
	bid, _ := ParseFrequency("bid")
	if got := bid.DosesPerDay(); got != 2 {
		t.Errorf("bid DosesPerDay = %v, want 2", got)
	}
	weekly, _ := ParseFrequency("weekly")
	if got := weekly.DosesPerWeek(); got != 1 {
		t.Errorf("weekly DosesPerWeek = %v, want 1", got)
	}
	if got := weekly.DosesPer(PerDay); math.Abs(got-1.0/7) > 1e-9 {
		t.Errorf("weekly DosesPer(day) = %v, want 1/7", got)
	}
}

func TestSafeRangeResolve(t *testing.T) {
	tests := []struct {
		name     string
		rng      SafeRange
		weightKg float64
		bsaM2    float64
		want     Bounds
		wantErr  bool
	}{
		{
			name:     "weight based scaled",
			rng:      SafeRange{MinPerUnit: 10, MaxPerUnit: 15, Basis: ByWeight, Period: PerDay},
			weightKg: 20,
			want:     Bounds{MinMg: 200, MaxMg: 300, Period: PerDay},
		},
		{
			name:     "absolute cap engages",
			rng:      SafeRange{MinPerUnit: 0.3, MaxPerUnit: 0.6, MaxAbsolute: 25, Basis: ByWeight, Period: PerWeek},
			weightKg: 60,
			want:     Bounds{MinMg: 18, MaxMg: 25, Period: PerWeek, Capped: true},
		},
		{
			name:  "bsa based",
			rng:   SafeRange{MinPerUnit: 10, MaxPerUnit: 15, Basis: ByBSA, Period: PerWeek},
			bsaM2: 1.2,
			want:  Bounds{MinMg: 12, MaxMg: 18, Period: PerWeek},
		},
		{
			name: "flat range ignores patient",
			rng:  SafeRange{MinPerUnit: 20, MaxPerUnit: 40, Basis: Flat, Period: PerWeek},
			want: Bounds{MinMg: 20, MaxMg: 40, Period: PerWeek},
		},
		{
			name:    "weight based without weight",
			rng:     SafeRange{MinPerUnit: 10, MaxPerUnit: 15, Basis: ByWeight, Period: PerDay},
			wantErr: true,
		},
		{
			name:     "bsa based without bsa",
			rng:      SafeRange{MinPerUnit: 10, MaxPerUnit: 15, Basis: ByBSA, Period: PerWeek},
			weightKg: 20,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rng.Resolve(tt.weightKg, tt.bsaM2)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got.MinMg-tt.want.MinMg) > 1e-9 || math.Abs(got.MaxMg-tt.want.MaxMg) > 1e-9 {
				t.Errorf("Resolve = [%v, %v], want [%v, %v]", got.MinMg, got.MaxMg, tt.want.MinMg, tt.want.MaxMg)
			}
			if got.Capped != tt.want.Capped {
				t.Errorf("Capped = %v, want %v", got.Capped, tt.want.Capped)
			}
			if got.Period != tt.want.Period {
				t.Errorf("Period = %v, want %v", got.Period, tt.want.Period)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	valid := func() Request {
		return Request{
			DrugName:         "methotrexate",
			DoseAmount:       10,
			DoseUnit:         Mg,
			Frequency:        Frequency{IntervalHours: 168},
			PatientAgeMonths: 96,
			PatientWeightKg:  25,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Request) {}},
		{name: "missing drug", mutate: func(r *Request) { r.DrugName = " " }, wantErr: true},
		{name: "zero dose", mutate: func(r *Request) { r.DoseAmount = 0 }, wantErr: true},
		{name: "missing unit", mutate: func(r *Request) { r.DoseUnit = "" }, wantErr: true},
		{name: "missing frequency", mutate: func(r *Request) { r.Frequency = Frequency{} }, wantErr: true},
		{name: "adult age", mutate: func(r *Request) { r.PatientAgeMonths = 420 }, wantErr: true},
		{name: "negative weight", mutate: func(r *Request) { r.PatientWeightKg = -1 }, wantErr: true},
		{
			name: "per-kg unit without weight",
			mutate: func(r *Request) {
				r.DoseUnit = MgKg
				r.PatientWeightKg = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestTotalMgPer(t *testing.T) {
	// 10 mg weekly methotrexate for a 25 kg patient.
	r := Request{
		DrugName:         "methotrexate",
		DoseAmount:       10,
		DoseUnit:         Mg,
		Frequency:        Frequency{IntervalHours: 168},
		PatientAgeMonths: 96,
		PatientWeightKg:  25,
	}
	got, err := r.TotalMgPer(PerWeek)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("TotalMgPer(week) = %v, want 10", got)
	}

	// 15 mg/kg paracetamol every 6 hours for a 20 kg patient: 4 doses/day.
	r = Request{
		DrugName:         "paracetamol",
		DoseAmount:       15,
		DoseUnit:         MgKg,
		Frequency:        Frequency{IntervalHours: 6},
		PatientAgeMonths: 60,
		PatientWeightKg:  20,
	}
	got, err = r.TotalMgPer(PerDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1200 {
		t.Errorf("TotalMgPer(day) = %v, want 1200", got)
	}
}

func TestRequestBSA(t *testing.T) {
	r := Request{PatientWeightKg: 36, PatientHeightCm: 100}
	if got := r.BSA(); got != 1 {
		t.Errorf("BSA = %v, want 1", got)
	}
	r = Request{PatientWeightKg: 25}
	if got := r.BSA(); got != 0 {
		t.Errorf("BSA without height = %v, want 0", got)
	}
}
