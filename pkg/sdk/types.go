package doseaudit

import (
	"fmt"
	"time"

	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
	"github.com/opencare-labs/doseaudit/internal/domain/source"
	"github.com/opencare-labs/doseaudit/internal/domain/verdict"
	"github.com/opencare-labs/doseaudit/internal/usecase/ingest"
)

// Decision is the outcome of a prescription safety check.
type Decision string

const (
	Approved Decision = "APPROVED"
	Alert    Decision = "ALERT"
	Rejected Decision = "REJECTED"
)

// Prescription is a structured prescription to validate.
// DoseUnit accepts "mg" or "mg/kg" (and common synonyms); Frequency
// accepts expressions like "daily", "q6h", "twice daily" or "weekly".
type Prescription struct {
	DrugName         string
	DoseAmount       float64
	DoseUnit         string
	Frequency        string
	Route            string
	PatientAgeMonths float64
	PatientWeightKg  float64
	PatientHeightCm  float64
}

func (p Prescription) toDomain() (dosing.Request, error) {
	unit, err := dosing.ParseUnit(p.DoseUnit)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("invalid prescription: %w", err)
	}
	freq, err := dosing.ParseFrequency(p.Frequency)
	if err != nil {
		return dosing.Request{}, fmt.Errorf("invalid prescription: %w", err)
	}
	return dosing.Request{
		DrugName:         p.DrugName,
		DoseAmount:       p.DoseAmount,
		DoseUnit:         unit,
		Frequency:        freq,
		Route:            p.Route,
		PatientAgeMonths: p.PatientAgeMonths,
		PatientWeightKg:  p.PatientWeightKg,
		PatientHeightCm:  p.PatientHeightCm,
	}, nil
}

// DoseRange is the reference dose range a verdict was checked against.
type DoseRange struct {
	MinMg  float64
	MaxMg  float64
	Period string
	Capped bool
}

// Evidence is one retrieved guideline passage cited in a verdict.
type Evidence struct {
	Source   string
	Page     int
	Score    float64
	Excerpt  string
	DrugName string
}

// Result is a completed validation verdict.
type Result struct {
	RunID     string
	Decision  Decision
	Rationale string
	Evidence  []Evidence
	Range     *DoseRange
	CreatedAt time.Time
}

func resultFromDomain(r verdict.Result) Result {
	out := Result{
		RunID:     r.RunID,
		Decision:  Decision(r.Decision),
		Rationale: r.Rationale,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Evidence) > 0 {
		out.Evidence = make([]Evidence, 0, len(r.Evidence))
		for _, item := range r.Evidence {
			out.Evidence = append(out.Evidence, evidenceFromDomain(item))
		}
	}
	if r.Range != nil {
		out.Range = &DoseRange{
			MinMg:  r.Range.MinMg,
			MaxMg:  r.Range.MaxMg,
			Period: string(r.Range.Period),
			Capped: r.Range.Capped,
		}
	}
	return out
}

func evidenceFromDomain(item evidence.Item) Evidence {
	return Evidence{
		Source:   item.Source,
		Page:     item.Page,
		Score:    item.Score,
		Excerpt:  item.Excerpt,
		DrugName: item.DrugName,
	}
}

// Document describes an ingested corpus document.
type Document struct {
	ID         string
	Title      string
	Type       string
	Checksum   string
	Pages      int
	ChunkCount int
}

func documentFromDomain(d *source.Document) Document {
	return Document{
		ID:         d.ID(),
		Title:      d.Title(),
		Type:       string(d.DocType()),
		Checksum:   d.Checksum(),
		Pages:      d.Pages(),
		ChunkCount: d.ChunkCount(),
	}
}

// Upload is a document to ingest into the corpus.
// Type must be "guideline" or "datasheet". Filename selects the text
// extractor: ".pdf" is parsed per page, anything else is plain text.
type Upload struct {
	ID       string
	Title    string
	Type     string
	Filename string
	Data     []byte
}

func (u Upload) toDomain() (ingest.Input, error) {
	docType, err := source.ParseType(u.Type)
	if err != nil {
		return ingest.Input{}, err
	}
	return ingest.Input{
		ID:       u.ID,
		Title:    u.Title,
		DocType:  docType,
		Filename: u.Filename,
		Data:     u.Data,
	}, nil
}
