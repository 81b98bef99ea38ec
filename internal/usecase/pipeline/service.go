// Package pipeline orchestrates a full prescription validation run:
// extraction, parallel evidence retrieval and range resolution, the
// audit decision, and persistence of the verdict.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opencare-labs/doseaudit/internal/db"
	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/domain/dosing"
	"github.com/opencare-labs/doseaudit/internal/domain/evidence"
	"github.com/opencare-labs/doseaudit/internal/domain/verdict"
	"github.com/opencare-labs/doseaudit/internal/metrics"
	"github.com/opencare-labs/doseaudit/internal/usecase/audit"
	"github.com/opencare-labs/doseaudit/internal/usecase/dosage"
)

// runTTL is how long completed verdicts stay readable.
const runTTL = 30 * 24 * time.Hour

const runKeyPrefix = domain.KeyPrefix + "run:"

type extractor interface {
	Extract(ctx context.Context, planText string) (dosing.Request, error)
}

type retriever interface {
	Retrieve(ctx context.Context, query, drugName string) ([]evidence.Item, error)
}

type doseResolver interface {
	Canonical(name string) (string, bool)
	Resolve(req *dosing.Request) (dosage.Resolution, error)
}

type auditor interface {
	Decide(ctx context.Context, in audit.Input) (audit.Outcome, error)
}

type runStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Timeouts bound each pipeline stage independently.
type Timeouts struct {
	Extract  time.Duration
	Retrieve time.Duration
	Audit    time.Duration
}

// Service runs the validation pipeline end to end.
type Service struct {
	extractor extractor
	retriever retriever
	doses     doseResolver
	auditor   auditor
	runs      runStore
	timeouts  Timeouts
	logger    *zap.Logger
}

func New(e extractor, r retriever, d doseResolver, a auditor, runs runStore, t Timeouts, logger *zap.Logger) *Service {
	if t.Extract <= 0 {
		t.Extract = 60 * time.Second
	}
	if t.Retrieve <= 0 {
		t.Retrieve = 15 * time.Second
	}
	if t.Audit <= 0 {
		t.Audit = 60 * time.Second
	}
	return &Service{
		extractor: e,
		retriever: r,
		doses:     d,
		auditor:   a,
		runs:      runs,
		timeouts:  t,
		logger:    logger,
	}
}

// ValidateText extracts a structured request from free plan text, then
// validates it.
func (s *Service) ValidateText(ctx context.Context, planText string) (verdict.Result, error) {
	extractCtx, cancel := context.WithTimeout(ctx, s.timeouts.Extract)
	defer cancel()

	req, err := s.extractor.Extract(extractCtx, planText)
	if err != nil {
		if stageTimedOut(ctx, extractCtx, err) {
			return verdict.Result{}, fmt.Errorf("extract stage: %w", domain.ErrPipelineTimeout)
		}
		return verdict.Result{}, err
	}
	return s.Validate(ctx, req)
}

// Validate checks one structured prescription. Evidence retrieval and
// range resolution run concurrently; their results meet in the audit.
// A retrieval failure is absorbed into an evidence-free decision rather
// than failing the run.
func (s *Service) Validate(ctx context.Context, req dosing.Request) (verdict.Result, error) {
	if err := req.Validate(); err != nil {
		return verdict.Result{}, fmt.Errorf("invalid prescription: %w", err)
	}

	canonical, _ := s.doses.Canonical(req.DrugName)

	var (
		items      []evidence.Item
		resolution dosage.Resolution
		resolveErr error
		noEvidence string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		retrieveCtx, cancel := context.WithTimeout(gctx, s.timeouts.Retrieve)
		defer cancel()

		query := fmt.Sprintf("pediatric dosing and contraindications for %s", canonical)
		ev, err := s.retriever.Retrieve(retrieveCtx, query, canonical)
		if err != nil {
			s.logger.Warn("evidence retrieval failed, deciding without evidence",
				zap.String("drug", canonical), zap.Error(err))
			noEvidence = "guideline retrieval was unavailable for this run"
			return nil
		}
		items = ev
		return nil
	})
	g.Go(func() error {
		resolution, resolveErr = s.doses.Resolve(&req)
		if resolveErr != nil && !degradable(resolveErr) {
			return resolveErr
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return verdict.Result{}, fmt.Errorf("resolve dose: %w", err)
	}

	in := audit.Input{
		Request:    req,
		Drug:       canonical,
		TotalMg:    resolution.TotalMg,
		ResolveErr: resolveErr,
		Evidence:   items,
	}
	if resolveErr == nil {
		bounds := resolution.Bounds
		in.Bounds = &bounds
	}

	auditCtx, cancel := context.WithTimeout(ctx, s.timeouts.Audit)
	defer cancel()

	out, err := s.auditor.Decide(auditCtx, in)
	if err != nil {
		if stageTimedOut(ctx, auditCtx, err) {
			return verdict.Result{}, fmt.Errorf("audit stage: %w", domain.ErrPipelineTimeout)
		}
		return verdict.Result{}, fmt.Errorf("audit: %w", err)
	}

	rationale := out.Rationale
	if noEvidence != "" {
		rationale = rationale + " (" + noEvidence + ")"
	}

	result, err := verdict.New(uuid.NewString(), out.Decision, rationale, items, in.Bounds, time.Now().UTC())
	if err != nil {
		return verdict.Result{}, fmt.Errorf("build verdict: %w", err)
	}

	if err := s.storeRun(ctx, result); err != nil {
		s.logger.Error("persist verdict failed", zap.String("run_id", result.RunID), zap.Error(err))
	}

	metrics.ValidationDecisionsTotal.WithLabelValues(string(result.Decision)).Inc()
	s.logger.Info("validation complete",
		zap.String("run_id", result.RunID),
		zap.String("drug", canonical),
		zap.String("decision", string(result.Decision)))
	return result, nil
}

// Run loads a stored verdict by its run ID.
func (s *Service) Run(ctx context.Context, runID string) (verdict.Result, error) {
	data, err := s.runs.Get(ctx, runKeyPrefix+runID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return verdict.Result{}, fmt.Errorf("run %s: %w", runID, domain.ErrDocumentNotFound)
		}
		return verdict.Result{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var result verdict.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return verdict.Result{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return result, nil
}

func (s *Service) storeRun(ctx context.Context, result verdict.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	return s.runs.SetWithTTL(ctx, runKeyPrefix+result.RunID, data, runTTL)
}

// degradable reports whether range resolution failed in a way the audit
// can still decide on, by falling back to evidence-only reasoning. A unit
// mismatch is not degradable: a dose that cannot be compared must fail the
// run rather than soften into an alert.
func degradable(err error) bool {
	return errors.Is(err, domain.ErrUnknownDrug)
}

// stageTimedOut reports whether err came from the stage deadline rather
// than the caller's own context.
func stageTimedOut(parent, stage context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return stage.Err() != nil && errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrPipelineTimeout)
}
