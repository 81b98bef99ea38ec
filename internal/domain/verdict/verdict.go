package verdict

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
)

// Decision is the outcome of a prescription safety check.
type Decision string

const (
	// Approved means the dose sits inside the published reference range and
	// no contraindication was found in the evidence.
	Approved Decision = "APPROVED"
	// Alert means the check could not be completed with confidence and a
	// human must review.
	Alert Decision = "ALERT"
	// Rejected means the dose exceeds the reference range beyond tolerance
	// or a contraindication applies.
	Rejected Decision = "REJECTED"
)

// ParseDecision validates a decision string.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case Approved:
		return Approved, nil
	case Alert:
		return Alert, nil
	case Rejected:
		return Rejected, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// Result is a completed validation verdict with its supporting evidence.
type Result struct {
	RunID     string          `json:"run_id"`
	Decision  Decision        `json:"decision"`
	Rationale string          `json:"rationale"`
	Evidence  []evidence.Item `json:"evidence"`
	Range     *dosing.Bounds  `json:"range,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// New validates and creates a Result. A verdict must always carry a
// rationale, and an approval must cite the range it was checked against.
func New(runID string, d Decision, rationale string, ev []evidence.Item, rng *dosing.Bounds, at time.Time) (Result, error) {
	if runID == "" {
		return Result{}, fmt.Errorf("run ID is required")
	}
	if _, err := ParseDecision(string(d)); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(rationale) == "" {
		return Result{}, fmt.Errorf("verdict rationale must not be empty")
	}
	if d == Approved && rng == nil {
		return Result{}, fmt.Errorf("an approval requires a resolved reference range")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Result{
		RunID:     runID,
		Decision:  d,
		Rationale: rationale,
		Evidence:  ev,
		Range:     rng,
		CreatedAt: at,
	}, nil
}
