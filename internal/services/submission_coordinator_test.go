package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedSessions fails Submit with the scripted errors in order, then succeeds
type scriptedSessions struct {
	SessionCoordinator
	errs  []error
	calls int
	loads int
}

func (s *scriptedSessions) Submit(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return submittedSession(sessionID, userID), nil
}

func (s *scriptedSessions) LoadSubmission(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error) {
	s.loads++
	return submittedSession(sessionID, userID), nil
}

func submittedSession(sessionID, userID string) *SubmissionSnapshot {
	now := time.Now()
	return &SubmissionSnapshot{Session: &models.TestSession{
		ID:          sessionID,
		UserID:      userID,
		Status:      models.SessionSubmitted,
		SubmittedAt: &now,
	}}
}

type scriptedEvaluator struct {
	errs  []error
	calls int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, snapshot *SubmissionSnapshot) (*models.Evaluation, error) {
	e.calls++
	if e.calls <= len(e.errs) && e.errs[e.calls-1] != nil {
		return nil, e.errs[e.calls-1]
	}
	return &models.Evaluation{SessionID: snapshot.Session.ID, OverallScore: 75}, nil
}

type scriptedEvaluatorDelay struct {
	scriptedEvaluator
	delay time.Duration
}

func (e *scriptedEvaluatorDelay) Evaluate(ctx context.Context, snapshot *SubmissionSnapshot) (*models.Evaluation, error) {
	time.Sleep(e.delay)
	return e.scriptedEvaluator.Evaluate(ctx, snapshot)
}

// passthroughReporter keeps reported evaluations in memory
type passthroughReporter struct {
	FeedbackReporter
	stored map[string]*models.Evaluation
}

func newPassthroughReporter() *passthroughReporter {
	return &passthroughReporter{stored: make(map[string]*models.Evaluation)}
}

func (r *passthroughReporter) Report(ctx context.Context, evaluation *models.Evaluation) (*models.Evaluation, error) {
	r.stored[evaluation.SessionID] = evaluation
	return evaluation, nil
}

func (r *passthroughReporter) GetEvaluation(ctx context.Context, sessionID, userID string) (*models.Evaluation, error) {
	if evaluation, ok := r.stored[sessionID]; ok {
		return evaluation, nil
	}
	return nil, ErrEvaluationNotFound
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestSubmissionCoordinator(sessions SessionCoordinator, evaluator Evaluator, probe repositories.PoolProbe) (*submissionCoordinator, *sleepRecorder) {
	recorder := &sleepRecorder{}
	c := NewSubmissionCoordinator(sessions, evaluator, newPassthroughReporter(), probe, discardLogger()).(*submissionCoordinator)
	c.sleep = recorder.sleep
	return c, recorder
}

func repeatErr(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}

func TestSubmissionCoordinator_ConnectionErrorExhaustsRetries(t *testing.T) {
	sessions := &scriptedSessions{errs: repeatErr(errors.New("dial tcp: ECONNREFUSED"), 10)}
	c, recorder := newTestSubmissionCoordinator(sessions, &scriptedEvaluator{}, nil)

	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ECONNREFUSED")
	assert.Equal(t, 4, sessions.calls, "one attempt plus three retries")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, recorder.delays)
}

func TestSubmissionCoordinator_BusinessErrorIsNotRetried(t *testing.T) {
	sessions := &scriptedSessions{errs: []error{newSubmitError(ErrSessionAlreadySubmitted)}}
	evaluator := &scriptedEvaluator{}
	c, recorder := newTestSubmissionCoordinator(sessions, evaluator, nil)
	c.reporter.(*passthroughReporter).stored["s-1"] = &models.Evaluation{SessionID: "s-1"}

	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	assert.True(t, IsSubmitFailed(err))
	assert.ErrorIs(t, err, ErrSessionAlreadySubmitted)
	assert.Equal(t, 1, sessions.calls)
	assert.Equal(t, 0, sessions.loads)
	assert.Equal(t, 0, evaluator.calls)
	assert.Empty(t, recorder.delays)
}

func TestSubmissionCoordinator_SubmittedWithoutEvaluationIsResumed(t *testing.T) {
	sessions := &scriptedSessions{errs: []error{newSubmitError(ErrSessionAlreadySubmitted)}}
	c, _ := newTestSubmissionCoordinator(sessions, &scriptedEvaluator{}, nil)

	result, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.NoError(t, err)
	assert.Equal(t, 1, sessions.loads)
	assert.Equal(t, "s-1", result.Snapshot.Session.ID)
	assert.Equal(t, 75.0, result.Evaluation.OverallScore)
}

// flakyEvaluator fails its first calls with a dropped connection
type flakyEvaluator struct {
	Evaluator
	failures int
	calls    int
}

func (e *flakyEvaluator) Evaluate(ctx context.Context, snapshot *SubmissionSnapshot) (*models.Evaluation, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("read tcp: connection reset by peer")
	}
	return e.Evaluator.Evaluate(ctx, snapshot)
}

func TestSubmissionCoordinator_ResubmitAfterExhaustedEvaluation(t *testing.T) {
	repo := newMemoryRepository()
	events := &recordingEvents{}
	test := seedTest(repo, bankQuestion("q1", "algebra"), bankQuestion("q2", "algebra"))
	sessions := NewSessionCoordinator(repo, events, discardLogger())
	reporter := NewFeedbackReporter(repo, nil, events, discardLogger(), time.Minute)
	evaluator := &flakyEvaluator{Evaluator: NewEvaluator(repo, discardLogger()), failures: 4}

	c := NewSubmissionCoordinator(sessions, evaluator, reporter, nil, discardLogger()).(*submissionCoordinator)
	c.sleep = (&sleepRecorder{}).sleep

	ctx := context.Background()
	started, err := sessions.Start(ctx, test.ID, "student-1")
	require.NoError(t, err)
	sessionID := started.Session.ID
	_, err = sessions.SubmitAnswer(ctx, sessionID, "student-1", &SubmitAnswerRequest{
		QuestionID: "q1",
		Answer:     models.SingleAnswer("answer q1"),
	})
	require.NoError(t, err)

	_, err = c.SubmitAndEvaluate(ctx, sessionID, "student-1")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, models.SessionSubmitted, repo.store.sessions[sessionID].Status)
	_, err = reporter.GetEvaluation(ctx, sessionID, "student-1")
	require.ErrorIs(t, err, ErrEvaluationNotFound)

	result, err := c.SubmitAndEvaluate(ctx, sessionID, "student-1")
	require.NoError(t, err)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, sessionID, result.Evaluation.SessionID)
	assert.Equal(t, 2, result.Evaluation.TotalCount)
	assert.Equal(t, 1, result.Evaluation.CorrectCount)
	require.Len(t, result.Snapshot.Responses, 1)

	stored, err := reporter.GetEvaluation(ctx, sessionID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, result.Evaluation.OverallScore, stored.OverallScore)

	_, err = c.SubmitAndEvaluate(ctx, sessionID, "student-1")
	assert.True(t, IsSubmitFailed(err), "evaluated session cannot be submitted again")
	assert.ErrorIs(t, err, ErrSessionAlreadySubmitted)
}

func TestSubmissionCoordinator_RecoversAfterTransientErrors(t *testing.T) {
	sessions := &scriptedSessions{errs: []error{errors.New("i/o timeout"), errors.New("connection reset by peer")}}
	c, recorder := newTestSubmissionCoordinator(sessions, &scriptedEvaluator{}, nil)

	result, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 75.0, result.Evaluation.OverallScore)
	assert.Equal(t, "s-1", result.Snapshot.Session.ID)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, recorder.delays)
}

func TestSubmissionCoordinator_RetryResumesAfterSuccessfulSubmit(t *testing.T) {
	sessions := &scriptedSessions{}
	evaluator := &scriptedEvaluator{errs: []error{errors.New("connection pool timeout")}}
	c, _ := newTestSubmissionCoordinator(sessions, evaluator, nil)

	result, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.NoError(t, err)
	assert.Equal(t, 1, sessions.calls, "submit is not repeated")
	assert.Equal(t, 2, evaluator.calls)
	assert.Equal(t, 2, result.Attempts)
}

func TestSubmissionCoordinator_LogsSlowAttempt(t *testing.T) {
	evaluator := &scriptedEvaluatorDelay{delay: slowAttemptThreshold + 20*time.Millisecond}
	c, _ := newTestSubmissionCoordinator(&scriptedSessions{}, evaluator, nil)
	var buf bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&buf, nil))

	result, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 75.0, result.Evaluation.OverallScore)
	assert.Equal(t, 1, strings.Count(buf.String(), "Slow attempt"))
	assert.Contains(t, buf.String(), "operation=submit_and_evaluate")
	assert.Contains(t, buf.String(), "attempt=1")
}

func TestSubmissionCoordinator_FastAttemptNotLogged(t *testing.T) {
	c, _ := newTestSubmissionCoordinator(&scriptedSessions{}, &scriptedEvaluator{}, nil)
	var buf bytes.Buffer
	c.logger = slog.New(slog.NewTextHandler(&buf, nil))

	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Slow attempt")
}

func TestSubmissionCoordinator_PoolSaturationFailsFast(t *testing.T) {
	probe := &MockPoolProbe{}
	probe.On("GetPoolMetrics", mock.Anything).
		Return(repositories.PoolMetrics{Active: 10, Idle: 0, Total: 10, UtilizationPercent: 100}, nil)

	sessions := &scriptedSessions{}
	c, recorder := newTestSubmissionCoordinator(sessions, &scriptedEvaluator{}, probe)

	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 0, sessions.calls, "operation never attempted")
	assert.Empty(t, recorder.delays)
	probe.AssertNumberOfCalls(t, "GetPoolMetrics", 1)
}

func TestSubmissionCoordinator_PoolCheckedBeforeEachAttempt(t *testing.T) {
	probe := &MockPoolProbe{}
	probe.On("GetPoolMetrics", mock.Anything).
		Return(repositories.PoolMetrics{Active: 3, Idle: 2, Total: 10, UtilizationPercent: 30}, nil).Once()
	probe.On("GetPoolMetrics", mock.Anything).
		Return(repositories.PoolMetrics{Active: 10, Total: 10, UtilizationPercent: 100}, nil)

	sessions := &scriptedSessions{errs: repeatErr(errors.New("connection refused"), 5)}
	c, _ := newTestSubmissionCoordinator(sessions, &scriptedEvaluator{}, probe)

	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")

	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, 1, sessions.calls)
}

func TestSubmissionCoordinator_ProbeErrorAdmits(t *testing.T) {
	probe := &MockPoolProbe{}
	probe.On("GetPoolMetrics", mock.Anything).Return(repositories.PoolMetrics{}, errors.New("stats unavailable"))

	c, _ := newTestSubmissionCoordinator(&scriptedSessions{}, &scriptedEvaluator{}, probe)
	_, err := c.SubmitAndEvaluate(context.Background(), "s-1", "student-1")
	assert.NoError(t, err)
}

func TestSubmissionCoordinator_SleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{errors.New("Connection refused"), true},
		{errors.New("context deadline exceeded (Client.Timeout)"), true},
		{errors.New("connection POOL exhausted"), true},
		{errors.New("ETIMEDOUT"), true},
		{ErrPoolExhausted, true},
		{newSubmitError(ErrSessionAlreadySubmitted), false},
		{errors.New("duplicate key value"), false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsTransient(tt.err), "%v", tt.err)
	}
}
