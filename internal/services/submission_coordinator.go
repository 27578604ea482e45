package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
)

const slowAttemptThreshold = 100 * time.Millisecond

// retryDelays are the waits before the second, third and fourth attempts
var retryDelays = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

type SubmissionCoordinator interface {
	// SubmitAndEvaluate runs submit, evaluate and report as one retryable unit
	SubmitAndEvaluate(ctx context.Context, sessionID, userID string) (*SubmissionResult, error)
}

type submissionCoordinator struct {
	sessions  SessionCoordinator
	evaluator Evaluator
	reporter  FeedbackReporter
	probe     repositories.PoolProbe
	logger    *slog.Logger

	delays []time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewSubmissionCoordinator accepts a nil probe, which disables admission control
func NewSubmissionCoordinator(
	sessions SessionCoordinator,
	evaluator Evaluator,
	reporter FeedbackReporter,
	probe repositories.PoolProbe,
	logger *slog.Logger,
) SubmissionCoordinator {
	return &submissionCoordinator{
		sessions:  sessions,
		evaluator: evaluator,
		reporter:  reporter,
		probe:     probe,
		logger:    logger,
		delays:    retryDelays,
		sleep:     sleepContext,
	}
}

func (c *submissionCoordinator) SubmitAndEvaluate(ctx context.Context, sessionID, userID string) (*SubmissionResult, error) {
	result := &SubmissionResult{}

	// Submit is a one-way transition, so a retry after it succeeded resumes at evaluation
	var snapshot *SubmissionSnapshot
	attempts, err := c.withRetry(ctx, "submit_and_evaluate", func(ctx context.Context) error {
		if snapshot == nil {
			submitted, err := c.sessions.Submit(ctx, sessionID, userID)
			if errors.Is(err, ErrSessionAlreadySubmitted) {
				submitted, err = c.resumeUnevaluated(ctx, sessionID, userID, err)
			}
			if err != nil {
				return err
			}
			snapshot = submitted
		}

		evaluation, err := c.evaluator.Evaluate(ctx, snapshot)
		if err != nil {
			return err
		}

		reported, err := c.reporter.Report(ctx, evaluation)
		if err != nil {
			return err
		}
		result.Evaluation = reported
		return nil
	})

	result.Attempts = attempts
	if err != nil {
		if IsTransient(err) {
			c.logger.Error("Submission failed on a transient error",
				"session_id", sessionID,
				"attempts", attempts,
				"submitted", snapshot != nil,
				"error", err)
		}
		return nil, err
	}

	result.Snapshot = snapshot
	return result, nil
}

// resumeUnevaluated picks up a session that was submitted by an earlier call which failed
// before its evaluation was stored. Once an evaluation exists the original rejection stands.
func (c *submissionCoordinator) resumeUnevaluated(ctx context.Context, sessionID, userID string, submitErr error) (*SubmissionSnapshot, error) {
	_, err := c.reporter.GetEvaluation(ctx, sessionID, userID)
	if err == nil {
		return nil, submitErr
	}
	if !errors.Is(err, ErrEvaluationNotFound) {
		return nil, err
	}

	c.logger.Info("Resuming evaluation of submitted session", "session_id", sessionID)
	return c.sessions.LoadSubmission(ctx, sessionID, userID)
}

// withRetry runs fn with pool admission control and retries connection-class failures.
// It reports how many times fn was invoked.
func (c *submissionCoordinator) withRetry(ctx context.Context, operation string, fn func(context.Context) error) (int, error) {
	attempts := 0
	for {
		if err := c.admit(ctx); err != nil {
			return attempts, err
		}

		attempts++
		start := time.Now()
		err := fn(ctx)
		if elapsed := time.Since(start); elapsed > slowAttemptThreshold {
			c.logger.Warn("Slow attempt",
				"operation", operation,
				"attempt", attempts,
				"duration", elapsed)
		}

		if err == nil {
			return attempts, nil
		}
		if !IsTransient(err) || attempts > len(c.delays) {
			return attempts, err
		}

		delay := c.delays[attempts-1]
		c.logger.Warn("Retrying after transient error",
			"operation", operation,
			"attempt", attempts,
			"delay", delay,
			"error", err)

		if err := c.sleep(ctx, delay); err != nil {
			return attempts, err
		}
	}
}

// admit refuses work while the connection pool is saturated
func (c *submissionCoordinator) admit(ctx context.Context) error {
	if c.probe == nil {
		return nil
	}

	metrics, err := c.probe.GetPoolMetrics(ctx)
	if err != nil {
		c.logger.Warn("Pool metrics unavailable, admitting attempt", "error", err)
		return nil
	}

	if metrics.UtilizationPercent >= 100 {
		c.logger.Warn("Connection pool saturated, refusing attempt",
			"active", metrics.Active,
			"idle", metrics.Idle,
			"total", metrics.Total)
		return fmt.Errorf("%w: %d of %d connections in use", ErrPoolExhausted, metrics.Active, metrics.Total)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

