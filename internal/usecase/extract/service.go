// Package extract turns free-text prescription plans into structured
// dosing requests via the completion model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
)

const systemPrompt = `You are a clinical data extractor. You read a pediatric
prescription plan and return its fields as a single JSON object with exactly
these keys:

  drug_name          string, the prescribed drug as written
  dose_amount        number, the dose per administration
  dose_unit          string, one of: mg, mcg, g, mg/kg, mcg/kg, mg/m2
  frequency          string, e.g. "daily", "bid", "weekly", "every 6 hours"
  route              string, e.g. "oral", "subcutaneous", or "" if absent
  patient_age_months number, the patient's age in months; convert years
  patient_weight_kg  number, 0 if absent
  patient_height_cm  number, 0 if absent

Return only the JSON object. Never invent values that are not in the text.`

// rawPlan is the model's JSON reply before domain validation.
type rawPlan struct {
	DrugName         string   `json:"drug_name"`
	DoseAmount       *float64 `json:"dose_amount"`
	DoseUnit         string   `json:"dose_unit"`
	Frequency        string   `json:"frequency"`
	Route            string   `json:"route"`
	PatientAgeMonths *float64 `json:"patient_age_months"`
	PatientWeightKg  float64  `json:"patient_weight_kg"`
	PatientHeightCm  float64  `json:"patient_height_cm"`
}

// Service extracts a dosing.Request from plan text.
type Service struct {
	completer domain.Completer
	logger    *zap.Logger
}

func New(completer domain.Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logger}
}

// Extract asks the model to structure the plan and validates the reply.
// A malformed reply gets one corrective round-trip that includes the
// parse failure; a second malformed reply fails with ErrExtraction.
func (s *Service) Extract(ctx context.Context, planText string) (dosing.Request, error) {
	if strings.TrimSpace(planText) == "" {
		return dosing.Request{}, fmt.Errorf("empty plan text: %w", domain.ErrExtraction)
	}

	req := domain.CompletionRequest{
		System:     systemPrompt,
		Prompt:     planText,
		JSONOutput: true,
		Stage:      domain.StageExtract,
	}

	res, err := s.completer.Complete(ctx, req)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("extract plan: %w", err)
	}

	parsed, parseErr := parsePlan(res.Content)
	if parseErr == nil {
		return parsed, nil
	}

	s.logger.Warn("malformed extraction, retrying with correction",
		zap.Error(parseErr))

	req.Prompt = fmt.Sprintf(
		"%s\n\nYour previous reply was invalid: %v.\nReturn a corrected JSON object.",
		planText, parseErr)

	res, err = s.completer.Complete(ctx, req)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("extract plan retry: %w", err)
	}
	parsed, parseErr = parsePlan(res.Content)
	if parseErr != nil {
		return dosing.Request{}, fmt.Errorf("%w: %v: %w",
			domain.ErrExtraction, parseErr, domain.ErrMalformedOutput)
	}
	return parsed, nil
}

// parsePlan decodes the model reply and maps it onto domain types.
func parsePlan(content string) (dosing.Request, error) {
	var raw rawPlan
	dec := json.NewDecoder(strings.NewReader(stripFences(content)))
	if err := dec.Decode(&raw); err != nil {
		return dosing.Request{}, fmt.Errorf("decode reply: %w", err)
	}

	if strings.TrimSpace(raw.DrugName) == "" {
		return dosing.Request{}, fmt.Errorf("missing drug_name")
	}
	if raw.DoseAmount == nil {
		return dosing.Request{}, fmt.Errorf("missing dose_amount")
	}
	if raw.PatientAgeMonths == nil {
		return dosing.Request{}, fmt.Errorf("missing patient_age_months")
	}

	unit, err := dosing.ParseUnit(raw.DoseUnit)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("dose_unit: %w", err)
	}
	freq, err := dosing.ParseFrequency(raw.Frequency)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("frequency: %w", err)
	}

	req := dosing.Request{
		DrugName:         strings.TrimSpace(raw.DrugName),
		DoseAmount:       *raw.DoseAmount,
		DoseUnit:         unit,
		Frequency:        freq,
		Route:            strings.TrimSpace(raw.Route),
		PatientAgeMonths: *raw.PatientAgeMonths,
		PatientWeightKg:  raw.PatientWeightKg,
		PatientHeightCm:  raw.PatientHeightCm,
	}
	if err := req.Validate(); err != nil {
		return dosing.Request{}, err
	}
	return req, nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
