// Package audit decides whether a prescription is safe. The numeric
// comparison against the reference range is pure code; the completion
// model is consulted only when no range exists and evidence does.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
	"github.com/opencare-labs/doseaudit/internal/domain/verdict"
)

// DefaultTolerance is the fraction above the range maximum that downgrades
// a rejection to an alert. A dose at most 10% over the ceiling is flagged
// for review instead of refused outright.
const DefaultTolerance = 0.10

var contraindicationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcontraindicat`),
	regexp.MustCompile(`(?i)\bmust not be (?:used|given|administered)\b`),
	regexp.MustCompile(`(?i)\bshould not be (?:used|given|administered)\b`),
	regexp.MustCompile(`(?i)\bdo not (?:use|give|administer)\b`),
	regexp.MustCompile(`(?i)\bnot recommended (?:in|for) (?:children|pediatric|paediatric)`),
}

// Input is everything the decision needs: the structured request, the
// outcome of range resolution, and the retrieved evidence.
type Input struct {
	Request dosing.Request
	Drug    string
	Bounds  *dosing.Bounds
	TotalMg float64
	// ResolveErr is the error from range resolution, nil when Bounds is set.
	ResolveErr error
	Evidence   []evidence.Item
}

// Outcome is the decision with its rationale.
type Outcome struct {
	Decision  verdict.Decision
	Rationale string
}

type auditStance struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
}

const systemPrompt = `You are a pediatric pharmacology auditor. You are given
a prescription and excerpts from official dosing guidelines. No numeric
reference range is available, so judge the prescription strictly from the
excerpts. Reply with a single JSON object:

  {"decision": "ALERT" | "REJECTED", "rationale": "..."}

Use REJECTED only when an excerpt clearly rules the prescription out.
Use ALERT whenever the excerpts are insufficient to decide. You may never
approve; approval requires a numeric range check.`

// Service applies the decision policy.
type Service struct {
	completer domain.Completer
	tolerance float64
	logger    *zap.Logger
}

func New(completer domain.Completer, tolerance float64, logger *zap.Logger) *Service {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Service{completer: completer, tolerance: tolerance, logger: logger}
}

// Decide maps the resolved dose and evidence to a verdict. The precedence
// is fixed: a contraindication in the evidence rejects regardless of the
// numeric result, then the range check runs, then the evidence-only path.
func (s *Service) Decide(ctx context.Context, in Input) (Outcome, error) {
	if hit, found := findContraindication(in.Evidence, in.Drug); found {
		return Outcome{
			Decision: verdict.Rejected,
			Rationale: fmt.Sprintf(
				"contraindication found in %s (page %d): %q",
				hit.Source, hit.Page, hit.Excerpt),
		}, nil
	}

	if in.Bounds != nil {
		return s.decideByRange(in), nil
	}

	return s.decideWithoutRange(ctx, in)
}

func (s *Service) decideByRange(in Input) Outcome {
	b := in.Bounds
	rangeDesc := fmt.Sprintf("%.4g-%.4g mg per %s (%s)", b.MinMg, b.MaxMg, b.Period, b.Citation)

	switch {
	case in.TotalMg > b.MaxMg*(1+s.tolerance):
		return Outcome{
			Decision: verdict.Rejected,
			Rationale: fmt.Sprintf(
				"total dose %.4g mg exceeds the reference maximum of %s by more than %.0f%%",
				in.TotalMg, rangeDesc, s.tolerance*100),
		}
	case in.TotalMg > b.MaxMg:
		return Outcome{
			Decision: verdict.Alert,
			Rationale: fmt.Sprintf(
				"total dose %.4g mg is above the reference maximum of %s but within the %.0f%% review tolerance",
				in.TotalMg, rangeDesc, s.tolerance*100),
		}
	case in.TotalMg < b.MinMg:
		return Outcome{
			Decision: verdict.Alert,
			Rationale: fmt.Sprintf(
				"total dose %.4g mg is below the reference minimum of %s, possible underdosing",
				in.TotalMg, rangeDesc),
		}
	default:
		return Outcome{
			Decision: verdict.Approved,
			Rationale: fmt.Sprintf(
				"total dose %.4g mg sits inside the reference range %s",
				in.TotalMg, rangeDesc),
		}
	}
}

func (s *Service) decideWithoutRange(ctx context.Context, in Input) (Outcome, error) {
	reason := "no reference range for this drug"
	if errors.Is(in.ResolveErr, domain.ErrUnknownDrug) {
		reason = fmt.Sprintf("no dosing formula for %q", in.Drug)
	}

	if len(in.Evidence) == 0 {
		return Outcome{
			Decision:  verdict.Alert,
			Rationale: reason + " and no guideline evidence was retrieved, manual review required",
		}, nil
	}

	outcome, err := s.evidenceStance(ctx, in)
	if err != nil {
		s.logger.Warn("evidence-only audit call failed", zap.Error(err))
		return Outcome{
			Decision:  verdict.Alert,
			Rationale: reason + "; the evidence review was unavailable, manual review required",
		}, nil
	}
	outcome.Rationale = reason + "; " + outcome.Rationale
	return outcome, nil
}

// evidenceStance asks the model to judge from the excerpts alone.
// Whatever it answers is clamped so it can never approve.
func (s *Service) evidenceStance(ctx context.Context, in Input) (Outcome, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Prescription: %s %.4g %s %s for a patient aged %.0f months",
		in.Request.DrugName, in.Request.DoseAmount, in.Request.DoseUnit,
		in.Request.Frequency.String(), in.Request.PatientAgeMonths)
	if in.Request.PatientWeightKg > 0 {
		fmt.Fprintf(&sb, ", weight %.1f kg", in.Request.PatientWeightKg)
	}
	sb.WriteString("\n\nGuideline excerpts:\n")
	for i, item := range in.Evidence {
		fmt.Fprintf(&sb, "%d. [%s, page %d] %s\n", i+1, item.Source, item.Page, item.Excerpt)
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		System:     systemPrompt,
		Prompt:     sb.String(),
		JSONOutput: true,
		Stage:      domain.StageAudit,
	})
	if err != nil {
		return Outcome{}, err
	}

	var stance auditStance
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Content)), &stance); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	d, err := verdict.ParseDecision(stance.Decision)
	if err != nil || strings.TrimSpace(stance.Rationale) == "" {
		return Outcome{}, fmt.Errorf("%w: stance %+v", domain.ErrMalformedOutput, stance)
	}
	if d == verdict.Approved {
		d = verdict.Alert
	}
	return Outcome{Decision: d, Rationale: stance.Rationale}, nil
}

// findContraindication scans the evidence for contraindication language.
// Items tagged with a different drug are skipped.
func findContraindication(items []evidence.Item, drug string) (evidence.Item, bool) {
	for _, item := range items {
		if item.DrugName != "" && drug != "" && !strings.EqualFold(item.DrugName, drug) {
			continue
		}
		for _, p := range contraindicationPatterns {
			if p.MatchString(item.Excerpt) {
				return item, true
			}
		}
	}
	return evidence.Item{}, false
}
