package services

import "github.com/SAP-F-2025/mocktest-service/internal/models"

// PlanDistribution splits totalQuestions across topics in input order. Every topic gets
// floor(total/n) and the first total%n topics get one extra, so counts differ by at most
// one and the sum is exactly totalQuestions. When the budget is smaller than the topic
// list, trailing topics get zero.
func PlanDistribution(topics []models.TopicRef, totalQuestions int) []models.TopicDistribution {
	if len(topics) == 0 {
		return []models.TopicDistribution{}
	}
	if totalQuestions < 0 {
		totalQuestions = 0
	}

	base := totalQuestions / len(topics)
	remainder := totalQuestions % len(topics)

	plan := make([]models.TopicDistribution, len(topics))
	for i, topic := range topics {
		count := base
		if i < remainder {
			count++
		}
		plan[i] = models.TopicDistribution{
			TopicID:       topic.ID,
			TopicName:     topic.Name,
			QuestionCount: count,
		}
	}
	return plan
}
