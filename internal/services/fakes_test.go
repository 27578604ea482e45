package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== IN-MEMORY REPOSITORY =====

type memoryStore struct {
	mu          sync.Mutex
	topics      map[string]*models.Topic
	questions   map[string]*models.Question
	order       []string
	tests       map[string]*models.MockTest
	sessions    map[string]*models.TestSession
	responses   map[string]map[string]*models.UserAnswer
	evaluations map[string]*models.Evaluation

	failCreateTest error
	txCount        int
}

type memoryRepository struct {
	store *memoryStore
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{store: &memoryStore{
		topics:      map[string]*models.Topic{},
		questions:   map[string]*models.Question{},
		tests:       map[string]*models.MockTest{},
		sessions:    map[string]*models.TestSession{},
		responses:   map[string]map[string]*models.UserAnswer{},
		evaluations: map[string]*models.Evaluation{},
	}}
}

func (r *memoryRepository) Topic() repositories.TopicRepository { return (*memTopics)(r.store) }
func (r *memoryRepository) Question() repositories.QuestionRepository { return (*memQuestions)(r.store) }
func (r *memoryRepository) MockTest() repositories.MockTestRepository { return (*memTests)(r.store) }
func (r *memoryRepository) Session() repositories.SessionRepository { return (*memSessions)(r.store) }
func (r *memoryRepository) Evaluation() repositories.EvaluationRepository { return (*memEvaluations)(r.store) }

// WithTransaction snapshots the test table so a failed batch leaves no tests behind
func (r *memoryRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.store.mu.Lock()
	r.store.txCount++
	saved := make(map[string]*models.MockTest, len(r.store.tests))
	for k, v := range r.store.tests {
		saved[k] = v
	}
	r.store.mu.Unlock()

	if err := fn(r); err != nil {
		r.store.mu.Lock()
		r.store.tests = saved
		r.store.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepository) Ping(ctx context.Context) error { return nil }
func (r *memoryRepository) Close() error { return nil }

func (r *memoryRepository) addTopic(id, name string) {
	r.store.topics[id] = &models.Topic{ID: id, Name: name}
}

func (r *memoryRepository) addQuestion(q *models.Question) {
	if _, ok := r.store.questions[q.ID]; !ok {
		r.store.order = append(r.store.order, q.ID)
	}
	r.store.questions[q.ID] = q
}

type memTopics memoryStore

func (m *memTopics) Upsert(ctx context.Context, topic *models.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic.ID] = topic
	return nil
}

func (m *memTopics) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.topics[id]; ok {
		return t, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memTopics) GetByIDs(ctx context.Context, ids []string) ([]*models.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Topic
	for _, id := range ids {
		if t, ok := m.topics[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTopics) FindMissing(ctx context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := m.topics[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memQuestions memoryStore

func (m *memQuestions) Upsert(ctx context.Context, q *models.Question) error {
	return m.UpsertBatch(ctx, []*models.Question{q})
}

func (m *memQuestions) UpsertBatch(ctx context.Context, questions []*models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range questions {
		if _, ok := m.questions[q.ID]; !ok {
			m.order = append(m.order, q.ID)
		}
		m.questions[q.ID] = q
	}
	return nil
}

func (m *memQuestions) GetByID(ctx context.Context, id string) (*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.questions[id]; ok {
		return q, nil
	}
	return nil, repositories.ErrNotFound
}

func (m *memQuestions) GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memQuestions) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := map[string]bool{}
	for _, id := range filters.TopicIDs {
		topics[id] = true
	}
	excluded := map[string]bool{}
	for _, id := range filters.ExcludeIDs {
		excluded[id] = true
	}
	var out []*models.Question
	for _, id := range m.order {
		q := m.questions[id]
		if (len(topics) > 0 && !topics[q.TopicID]) || excluded[q.ID] {
			continue
		}
		out = append(out, q)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (m *memQuestions) CountByTopics(ctx context.Context, topicIDs []string) (int64, error) {
	out, err := m.List(ctx, repositories.QuestionFilters{TopicIDs: topicIDs})
	return int64(len(out)), err
}

type memTests memoryStore

func (m *memTests) CreateWithQuestions(ctx context.Context, test *models.MockTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateTest != nil {
		return m.failCreateTest
	}
	if _, ok := m.tests[test.ID]; ok {
		return repositories.ErrDuplicate
	}
	m.tests[test.ID] = test
	return nil
}

func (m *memTests) GetByID(ctx context.Context, id string) (*models.MockTest, error) {
	return m.GetByIDWithQuestions(ctx, id)
}

func (m *memTests) GetByIDWithQuestions(ctx context.Context, id string) (*models.MockTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	test, ok := m.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	// Links resolve against the bank the way a preload would
	for i := range test.Questions {
		if q, ok := m.questions[test.Questions[i].QuestionID]; ok {
			test.Questions[i].Question = q
		}
	}
	return test, nil
}

func (m *memTests) ListByRun(ctx context.Context, runID string) ([]*models.MockTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MockTest
	for _, t := range m.tests {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memTests) UpdateStatus(ctx context.Context, id string, status models.TestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	test, ok := m.tests[id]
	if !ok {
		return repositories.ErrNotFound
	}
	test.Status = status
	return nil
}

type memSessions memoryStore

func (m *memSessions) Create(ctx context.Context, session *models.TestSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessions) GetByID(ctx context.Context, id string) (*models.TestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *s
	copied.Responses = nil
	return &copied, nil
}

func (m *memSessions) GetByIDWithResponses(ctx context.Context, id string) (*models.TestSession, error) {
	session, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	responses, _ := m.GetResponses(ctx, id)
	for _, r := range responses {
		session.Responses = append(session.Responses, *r)
	}
	return session, nil
}

func (m *memSessions) GetActive(ctx context.Context, testID, userID string) (*models.TestSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TestID == testID && s.UserID == userID && s.Status == models.SessionInProgress {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memSessions) UpsertResponse(ctx context.Context, answer *models.UserAnswer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.responses[answer.SessionID] == nil {
		m.responses[answer.SessionID] = map[string]*models.UserAnswer{}
	}
	copied := *answer
	m.responses[answer.SessionID][answer.QuestionID] = &copied
	return nil
}

func (m *memSessions) GetResponses(ctx context.Context, sessionID string) ([]*models.UserAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.UserAnswer
	for _, a := range m.responses[sessionID] {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (m *memSessions) MarkSubmitted(ctx context.Context, id string, submittedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != models.SessionInProgress {
		return false, nil
	}
	s.Status = models.SessionSubmitted
	s.SubmittedAt = &submittedAt
	return true, nil
}

type memEvaluations memoryStore

func (m *memEvaluations) Create(ctx context.Context, evaluation *models.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.evaluations[evaluation.SessionID]; ok {
		return repositories.ErrDuplicate
	}
	m.evaluations[evaluation.SessionID] = evaluation
	return nil
}

func (m *memEvaluations) GetBySessionID(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.evaluations[sessionID]; ok {
		return e, nil
	}
	return nil, repositories.ErrNotFound
}

// ===== PORT MOCKS =====

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) RetrieveQuestions(ctx context.Context, topicIDs []string, count int, excludeIDs []string) ([]*models.Question, error) {
	args := m.Called(ctx, topicIDs, count, excludeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockRetriever) GetSyllabusContext(ctx context.Context, topicID string) (*models.SyllabusContext, error) {
	args := m.Called(ctx, topicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyllabusContext), args.Error(1)
}

func (m *MockRetriever) IndexQuestion(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

// bankRetriever serves retrieval straight from the in-memory bank
type bankRetriever struct {
	repo    *memoryRepository
	indexed []string
}

func (b *bankRetriever) RetrieveQuestions(ctx context.Context, topicIDs []string, count int, excludeIDs []string) ([]*models.Question, error) {
	return b.repo.Question().List(ctx, repositories.QuestionFilters{TopicIDs: topicIDs, ExcludeIDs: excludeIDs, Limit: count})
}

func (b *bankRetriever) GetSyllabusContext(ctx context.Context, topicID string) (*models.SyllabusContext, error) {
	return &models.SyllabusContext{TopicID: topicID, Content: "syllabus for " + topicID}, nil
}

func (b *bankRetriever) IndexQuestion(ctx context.Context, question *models.Question) error {
	b.indexed = append(b.indexed, question.ID)
	return nil
}

// fakeGenerator mints sequential questions for the requested topic and records every call
type fakeGenerator struct {
	mu      sync.Mutex
	next    int
	calls   []generatorCall
	failOn  string
	wrongTo string
}

type generatorCall struct {
	topicID  string
	count    int
	existing int
	mode     models.TestMode
}

func (g *fakeGenerator) GenerateQuestions(ctx context.Context, syllabus models.SyllabusContext, count int, existing []*models.Question, subject string, mode models.TestMode) ([]*models.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generatorCall{topicID: syllabus.TopicID, count: count, existing: len(existing), mode: mode})

	if syllabus.TopicID == g.failOn {
		return nil, errors.New("model quota exceeded")
	}

	out := make([]*models.Question, count)
	for i := range out {
		g.next++
		topic := syllabus.TopicID
		if g.wrongTo != "" {
			topic = g.wrongTo
		}
		out[i] = &models.Question{
			ID:            fmt.Sprintf("gen-%d", g.next),
			TopicID:       topic,
			Text:          fmt.Sprintf("Generated question %d", g.next),
			Type:          models.MultipleChoice,
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: models.SingleAnswer("a"),
			Difficulty:    models.DifficultyExamRealistic,
			Source:        models.SourceGenerated,
		}
	}
	return out, nil
}

type MockPoolProbe struct {
	mock.Mock
}

func (m *MockPoolProbe) GetPoolMetrics(ctx context.Context) (repositories.PoolMetrics, error) {
	args := m.Called(ctx)
	return args.Get(0).(repositories.PoolMetrics), args.Error(1)
}

// recordingEvents captures domain events without a publisher
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingEvents) NotifyTestsGenerated(ctx context.Context, runID, requesterID string, cfg *models.TestConfiguration, tests []*models.MockTest) {
	r.record("tests.generated")
}

func (r *recordingEvents) NotifySessionStarted(ctx context.Context, session *models.TestSession) {
	r.record("session.started")
}

func (r *recordingEvents) NotifySessionSubmitted(ctx context.Context, session *models.TestSession, answeredCount int) {
	r.record("session.submitted")
}

func (r *recordingEvents) NotifyEvaluationCompleted(ctx context.Context, evaluation *models.Evaluation) {
	r.record("evaluation.completed")
}

func bankQuestion(id, topicID string) *models.Question {
	return &models.Question{
		ID:            id,
		TopicID:       topicID,
		Text:          "Question " + id,
		Type:          models.ShortAnswer,
		CorrectAnswer: models.SingleAnswer("answer " + id),
		Difficulty:    models.DifficultyExamRealistic,
		Source:        models.SourceRetrieved,
	}
}
