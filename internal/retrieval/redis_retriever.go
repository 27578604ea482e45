package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/redis/go-redis/v9"
)

const defaultSyllabusTTL = 6 * time.Hour

// RedisRetriever serves questions from a Redis index of topic -> question ids
// and question documents. The Postgres bank backfills the index on misses.
type RedisRetriever struct {
	client      *redis.Client
	topics      repositories.TopicRepository
	questions   repositories.QuestionRepository
	prefix      string
	syllabusTTL time.Duration
	logger      *slog.Logger
}

func NewRedisRetriever(
	client *redis.Client,
	topics repositories.TopicRepository,
	questions repositories.QuestionRepository,
	prefix string,
	logger *slog.Logger,
) *RedisRetriever {
	return &RedisRetriever{
		client:      client,
		topics:      topics,
		questions:   questions,
		prefix:      prefix,
		syllabusTTL: defaultSyllabusTTL,
		logger:      logger,
	}
}

// Key helpers
func (r *RedisRetriever) questionKey(id string) string {
	return fmt.Sprintf("%s:question:%s", r.prefix, id)
}

func (r *RedisRetriever) topicKey(topicID string) string {
	return fmt.Sprintf("%s:topic:%s", r.prefix, topicID)
}

func (r *RedisRetriever) syllabusKey(topicID string) string {
	return fmt.Sprintf("%s:syllabus:%s", r.prefix, topicID)
}

// RetrieveQuestions picks up to count questions across topics, round-robin in
// topic order, skipping excluded ids. A short result is not an error here.
func (r *RedisRetriever) RetrieveQuestions(ctx context.Context, topicIDs []string, count int, excludeIDs []string) ([]*models.Question, error) {
	if count <= 0 || len(topicIDs) == 0 {
		return []*models.Question{}, nil
	}

	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	candidates := make([][]string, len(topicIDs))
	for i, topicID := range topicIDs {
		ids, err := r.client.SMembers(ctx, r.topicKey(topicID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read topic index %s: %w", topicID, err)
		}
		sort.Strings(ids)
		filtered := ids[:0]
		for _, id := range ids {
			if !excluded[id] {
				filtered = append(filtered, id)
			}
		}
		candidates[i] = filtered
	}

	picked := roundRobin(candidates, count)

	questions, err := r.loadQuestions(ctx, picked)
	if err != nil {
		return nil, err
	}

	if len(questions) < count {
		topUp, err := r.backfill(ctx, topicIDs, count-len(questions), excluded, questions)
		if err != nil {
			return nil, err
		}
		questions = append(questions, topUp...)
	}

	return questions, nil
}

func roundRobin(candidates [][]string, count int) []string {
	picked := make([]string, 0, count)
	seen := make(map[string]bool)
	for depth := 0; len(picked) < count; depth++ {
		progressed := false
		for _, ids := range candidates {
			if depth >= len(ids) {
				continue
			}
			progressed = true
			id := ids[depth]
			if seen[id] {
				continue
			}
			seen[id] = true
			picked = append(picked, id)
			if len(picked) == count {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return picked
}

// loadQuestions reads question documents, falling back to the bank for ids
// whose document has expired or was never written.
func (r *RedisRetriever) loadQuestions(ctx context.Context, ids []string) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.questionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read question documents: %w", err)
	}

	byID := make(map[string]*models.Question, len(ids))
	var missing []string
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var question models.Question
		if err := json.Unmarshal([]byte(raw), &question); err != nil {
			r.logger.Warn("Undecodable question document", "question_id", ids[i], "error", err)
			missing = append(missing, ids[i])
			continue
		}
		byID[ids[i]] = &question
	}

	if len(missing) > 0 {
		stored, err := r.questions.GetByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions from bank: %w", err)
		}
		for _, question := range stored {
			byID[question.ID] = question
			if err := r.IndexQuestion(ctx, question); err != nil {
				r.logger.Warn("Failed to re-index question", "question_id", question.ID, "error", err)
			}
		}
	}

	ordered := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if question, ok := byID[id]; ok {
			ordered = append(ordered, question)
		}
	}
	return ordered, nil
}

func (r *RedisRetriever) backfill(ctx context.Context, topicIDs []string, need int, excluded map[string]bool, have []*models.Question) ([]*models.Question, error) {
	exclude := make([]string, 0, len(excluded)+len(have))
	for id := range excluded {
		exclude = append(exclude, id)
	}
	for _, question := range have {
		exclude = append(exclude, question.ID)
	}

	stored, err := r.questions.List(ctx, repositories.QuestionFilters{
		TopicIDs:   topicIDs,
		ExcludeIDs: exclude,
		Limit:      need,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to backfill questions from bank: %w", err)
	}

	for _, question := range stored {
		if err := r.IndexQuestion(ctx, question); err != nil {
			r.logger.Warn("Failed to index backfilled question", "question_id", question.ID, "error", err)
		}
	}

	if len(stored) > 0 {
		r.logger.Info("Backfilled retriever index from bank", "count", len(stored))
	}
	return stored, nil
}

// IndexQuestion writes the question document and adds it to its topic set
func (r *RedisRetriever) IndexQuestion(ctx context.Context, question *models.Question) error {
	data, err := json.Marshal(question)
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.questionKey(question.ID), data, 0)
	pipe.SAdd(ctx, r.topicKey(question.TopicID), question.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index question %s: %w", question.ID, err)
	}
	return nil
}

// GetSyllabusContext returns cached grounding for a topic, loading it from the
// topic store on a miss. Topics without a record get an empty context.
func (r *RedisRetriever) GetSyllabusContext(ctx context.Context, topicID string) (*models.SyllabusContext, error) {
	key := r.syllabusKey(topicID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read syllabus cache: %w", err)
	}
	if len(fields) > 0 {
		syllabus := &models.SyllabusContext{
			TopicID:   topicID,
			TopicName: fields["topic_name"],
			Content:   fields["content"],
		}
		if related := fields["related_concepts"]; related != "" {
			if err := json.Unmarshal([]byte(related), &syllabus.RelatedConcepts); err != nil {
				r.logger.Warn("Undecodable related concepts in cache", "topic_id", topicID, "error", err)
			}
		}
		return syllabus, nil
	}

	topic, err := r.topics.GetByID(ctx, topicID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			r.logger.Debug("No syllabus record for topic", "topic_id", topicID)
			return &models.SyllabusContext{TopicID: topicID, TopicName: topicID}, nil
		}
		return nil, fmt.Errorf("failed to load topic %s: %w", topicID, err)
	}

	syllabus := &models.SyllabusContext{
		TopicID:         topic.ID,
		TopicName:       topic.Name,
		Content:         topic.Description,
		RelatedConcepts: []string(topic.RelatedConcepts),
	}

	related, _ := json.Marshal(syllabus.RelatedConcepts)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"topic_name", syllabus.TopicName,
		"content", syllabus.Content,
		"related_concepts", string(related),
	)
	pipe.Expire(ctx, key, r.syllabusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("Failed to cache syllabus context", "topic_id", topicID, "error", err)
	}

	return syllabus, nil
}
