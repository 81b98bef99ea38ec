package dosage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
)

// Resolution is a prescription checked against the reference table: the
// absolute bounds for this patient and the prescribed total over the same
// period, ready for comparison.
type Resolution struct {
	CanonicalDrug string
	Bounds        dosing.Bounds
	TotalMg       float64
}

// Service resolves prescriptions against the pediatric reference table.
// All arithmetic is plain code; no model output is trusted for math.
type Service struct {
	logger *zap.Logger
}

// New creates a dosage service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Canonical normalizes a drug name via the synonym table.
func (s *Service) Canonical(name string) (string, bool) {
	return CanonicalDrug(name)
}

// Resolve validates the request, finds the drug's reference range, scales
// it to the patient, and normalizes the prescribed dose to the range's
// period. Returns domain.ErrUnknownDrug when the drug has no table entry
// and dosing.ErrUnitMismatch when the dose unit cannot be converted.
func (s *Service) Resolve(req *dosing.Request) (Resolution, error) {
	if err := req.Validate(); err != nil {
		return Resolution{}, fmt.Errorf("invalid prescription: %w", err)
	}

	canonical, known := CanonicalDrug(req.DrugName)
	if !known {
		return Resolution{CanonicalDrug: canonical},
			fmt.Errorf("drug %q: %w", req.DrugName, domain.ErrUnknownDrug)
	}

	rng, ok := lookupRange(canonical, req.PatientWeightKg, req.BSA())
	if !ok {
		return Resolution{CanonicalDrug: canonical},
			fmt.Errorf("drug %q: %w", req.DrugName, domain.ErrUnknownDrug)
	}

	bounds, err := rng.Resolve(req.PatientWeightKg, req.BSA())
	if err != nil {
		return Resolution{CanonicalDrug: canonical}, fmt.Errorf("resolve range for %s: %w", canonical, err)
	}

	total, err := req.TotalMgPer(bounds.Period)
	if err != nil {
		return Resolution{CanonicalDrug: canonical}, fmt.Errorf("normalize dose for %s: %w", canonical, err)
	}

	s.logger.Debug("Resolved prescription against reference range",
		zap.String("drug", canonical),
		zap.Float64("total_mg", total),
		zap.Float64("min_mg", bounds.MinMg),
		zap.Float64("max_mg", bounds.MaxMg),
		zap.String("period", string(bounds.Period)),
		zap.Bool("capped", bounds.Capped),
	)

	return Resolution{
		CanonicalDrug: canonical,
		Bounds:        bounds,
		TotalMg:       total,
	}, nil
}
