package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/opencare-labs/doseaudit/internal/domain"
	"github.com/opencare-labs/doseaudit/internal/metrics"
)

const baseBackoff = 500 * time.Millisecond

// PolicyCompleter wraps Completer with a per-call timeout, bounded retry,
// and a concurrency cap. Transport metrics (requests, duration, tokens)
// are recorded in transport/openai; this layer owns retry metrics only.
type PolicyCompleter struct {
	inner       domain.Completer
	model       string
	callTimeout time.Duration
	maxRetries  int
	sem         *semaphore.Weighted
	logger      *zap.Logger
}

// NewPolicyCompleter wraps a completer with call policy.
// maxConcurrent <= 0 means no concurrency cap.
func NewPolicyCompleter(
	inner domain.Completer, model string,
	callTimeout time.Duration, maxRetries, maxConcurrent int,
	logger *zap.Logger,
) *PolicyCompleter {
	var sem *semaphore.Weighted
	if maxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return &PolicyCompleter{
		inner:       inner,
		model:       model,
		callTimeout: callTimeout,
		maxRetries:  maxRetries,
		sem:         sem,
		logger:      logger,
	}
}

// Complete acquires a concurrency slot, then runs the inner call with a
// timeout, retrying transient provider failures with exponential backoff.
func (p *PolicyCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return domain.CompletionResult{}, fmt.Errorf("acquire model slot: %w", err)
		}
		defer p.sem.Release(1)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ModelRetriesTotal.WithLabelValues(p.model, string(req.Stage)).Inc()
			p.logger.Warn("Retrying model call",
				zap.String("stage", string(req.Stage)),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return domain.CompletionResult{}, fmt.Errorf("model call canceled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		result, err := p.completeOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			break
		}
	}

	return domain.CompletionResult{}, lastErr
}

func (p *PolicyCompleter) completeOnce(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	start := time.Now()

	result, err := p.inner.Complete(callCtx, req)

	duration := time.Since(start)

	if err != nil {
		// A deadline on the call context, not the parent, is a timeout of
		// this single attempt and stays retryable.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.CompletionResult{}, fmt.Errorf("model call timed out after %s: %w",
				p.callTimeout, domain.ErrModelProvider)
		}
		return domain.CompletionResult{}, err
	}

	p.logger.Debug("Model call completed",
		zap.String("stage", string(req.Stage)),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// retryable reports whether the failure is worth another attempt. Parent
// context cancellation and malformed output are terminal.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, domain.ErrModelProvider)
}
