package dosage

import (
	"strings"

	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
)

// drugSynonyms maps trade names, translations, and shorthands onto the
// canonical drug name used by the reference table and the chunk drug tag.
var drugSynonyms = map[string]string{
	"methotrexate":  "methotrexate",
	"metotrexato":   "methotrexate",
	"mtx":           "methotrexate",
	"trexall":       "methotrexate",
	"paracetamol":   "paracetamol",
	"acetaminophen": "paracetamol",
	"tylenol":       "paracetamol",
	"adalimumab":    "adalimumab",
	"humira":        "adalimumab",
	"ibuprofen":     "ibuprofen",
	"ibuprofeno":    "ibuprofen",
	"advil":         "ibuprofen",
	"motrin":        "ibuprofen",
	"naproxen":      "naproxen",
	"naproxeno":     "naproxen",
	"naprosyn":      "naproxen",
	"prednisolone":  "prednisolone",
	"prednisolona":  "prednisolone",
	"etanercept":    "etanercept",
	"enbrel":        "etanercept",
	"tocilizumab":   "tocilizumab",
	"actemra":       "tocilizumab",
}

// CanonicalDrug normalizes a drug name. The second return is false when the
// name is not in the synonym table; the raw lowercase name is still returned
// so it can be used for evidence filtering.
func CanonicalDrug(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := drugSynonyms[key]; ok {
		return canonical, true
	}
	return key, false
}

// entry is one drug's reference dosing, optionally banded by body weight.
// Bands are checked in order; the first band whose MaxWeightKg is at or
// above the patient's weight wins. A zero MaxWeightKg band is the catch-all.
// BSARange, when set, is preferred over the weight range for patients whose
// body surface area is known.
type entry struct {
	Bands    []band
	Range    dosing.SafeRange
	BSARange dosing.SafeRange
}

type band struct {
	MaxWeightKg float64
	Range       dosing.SafeRange
}

// referenceTable holds published pediatric ranges per canonical drug.
// Weekly ranges cover the drugs dosed once weekly or less often.
var referenceTable = map[string]entry{
	"methotrexate": {
		// Low-dose oral/subcutaneous for juvenile idiopathic arthritis.
		Range: dosing.SafeRange{
			MinPerUnit:  0.3,
			MaxPerUnit:  0.6,
			MaxAbsolute: 25,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerWeek,
			Citation:    "methotrexate datasheet, JIA weekly dosing",
		},
		BSARange: dosing.SafeRange{
			MinPerUnit:  10,
			MaxPerUnit:  15,
			MaxAbsolute: 25,
			Basis:       dosing.ByBSA,
			Period:      dosing.PerWeek,
			Citation:    "methotrexate datasheet, JIA 10 to 15 mg/m2 weekly",
		},
	},
	"paracetamol": {
		Range: dosing.SafeRange{
			MinPerUnit:  30,
			MaxPerUnit:  75,
			MaxAbsolute: 4000,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerDay,
			Citation:    "paracetamol datasheet, pediatric daily maximum",
		},
	},
	"ibuprofen": {
		Range: dosing.SafeRange{
			MinPerUnit:  20,
			MaxPerUnit:  40,
			MaxAbsolute: 2400,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerDay,
			Citation:    "ibuprofen datasheet, pediatric daily range",
		},
	},
	"naproxen": {
		Range: dosing.SafeRange{
			MinPerUnit:  10,
			MaxPerUnit:  20,
			MaxAbsolute: 1000,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerDay,
			Citation:    "naproxen datasheet, pediatric daily range",
		},
	},
	"prednisolone": {
		Range: dosing.SafeRange{
			MinPerUnit:  0.5,
			MaxPerUnit:  2,
			MaxAbsolute: 60,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerDay,
			Citation:    "prednisolone datasheet, pediatric daily range",
		},
	},
	"adalimumab": {
		// Flat dose banded by weight: 20 mg every other week under 30 kg,
		// 40 mg every other week from 30 kg. Expressed as weekly equivalents
		// so any schedule normalizes to the same period.
		Bands: []band{
			{
				MaxWeightKg: 30,
				Range: dosing.SafeRange{
					MinPerUnit: 10, MaxPerUnit: 10,
					Basis: dosing.Flat, Period: dosing.PerWeek,
					Citation: "adalimumab datasheet, JIA 10 to <30 kg, 20 mg every other week",
				},
			},
			{
				Range: dosing.SafeRange{
					MinPerUnit: 20, MaxPerUnit: 20,
					Basis: dosing.Flat, Period: dosing.PerWeek,
					Citation: "adalimumab datasheet, JIA >=30 kg, 40 mg every other week",
				},
			},
		},
	},
	"etanercept": {
		Range: dosing.SafeRange{
			MinPerUnit:  0.8,
			MaxPerUnit:  0.8,
			MaxAbsolute: 50,
			Basis:       dosing.ByWeight,
			Period:      dosing.PerWeek,
			Citation:    "etanercept datasheet, JIA weekly dosing",
		},
	},
}

// lookupRange returns the reference range for a canonical drug. A BSA range
// wins when the patient's body surface area is known, otherwise the weight
// band or plain range applies.
func lookupRange(canonical string, weightKg, bsaM2 float64) (dosing.SafeRange, bool) {
	e, ok := referenceTable[canonical]
	if !ok {
		return dosing.SafeRange{}, false
	}
	if e.BSARange.MaxPerUnit > 0 && bsaM2 > 0 {
		return e.BSARange, true
	}
	if len(e.Bands) == 0 {
		return e.Range, true
	}
	for _, b := range e.Bands {
		if b.MaxWeightKg == 0 || weightKg < b.MaxWeightKg {
			return b.Range, true
		}
	}
	return e.Bands[len(e.Bands)-1].Range, true
}
