package services

import (
	"log/slog"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/cache"
	"github.com/SAP-F-2025/mocktest-service/internal/events"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
)

// ServiceManager exposes the wired service graph to the request layer
type ServiceManager interface {
	ConfigValidator() ConfigValidator
	TestAssembler() TestAssembler
	Session() SessionCoordinator
	Submission() SubmissionCoordinator
	Feedback() FeedbackReporter
	ImportExport() ImportExportService
	Repository() repositories.Repository
}

// Dependencies collects the adapters the service graph is built from
type Dependencies struct {
	Repo      repositories.Repository
	Retriever Retriever
	// Generator is nil in retrieval-only deployments
	Generator      Generator
	PoolProbe      repositories.PoolProbe
	Cache          cache.CacheService
	EventPublisher events.EventPublisher
	Validator      *validator.Validator
	Logger         *slog.Logger
	EvaluationTTL  time.Duration
}

type serviceManager struct {
	repo            repositories.Repository
	configValidator ConfigValidator
	assembler       TestAssembler
	sessions        SessionCoordinator
	submission      SubmissionCoordinator
	feedback        FeedbackReporter
	importExport    ImportExportService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	logger := deps.Logger

	domainEvents := NewDomainEventService(deps.EventPublisher, logger.With("component", "events"))
	configValidator := NewConfigValidator(deps.Repo, logger.With("component", "config_validator"), deps.Validator, deps.Generator != nil)
	sourcer := NewQuestionSourcer(deps.Repo, deps.Retriever, deps.Generator, logger.With("component", "sourcer"), deps.Validator)
	sessions := NewSessionCoordinator(deps.Repo, domainEvents, logger.With("component", "sessions"))
	evaluator := NewEvaluator(deps.Repo, logger.With("component", "evaluator"))
	feedback := NewFeedbackReporter(deps.Repo, deps.Cache, domainEvents, logger.With("component", "feedback"), deps.EvaluationTTL)

	return &serviceManager{
		repo:            deps.Repo,
		configValidator: configValidator,
		assembler:       NewTestAssembler(deps.Repo, configValidator, sourcer, domainEvents, logger.With("component", "assembler")),
		sessions:        sessions,
		submission:      NewSubmissionCoordinator(sessions, evaluator, feedback, deps.PoolProbe, logger.With("component", "submission")),
		feedback:        feedback,
		importExport:    NewImportExportService(deps.Repo, deps.Retriever, logger.With("component", "import_export"), deps.Validator),
	}
}

func (m *serviceManager) ConfigValidator() ConfigValidator { return m.configValidator }
func (m *serviceManager) TestAssembler() TestAssembler { return m.assembler }
func (m *serviceManager) Session() SessionCoordinator { return m.sessions }
func (m *serviceManager) Submission() SubmissionCoordinator { return m.submission }
func (m *serviceManager) Feedback() FeedbackReporter { return m.feedback }
func (m *serviceManager) ImportExport() ImportExportService { return m.importExport }
func (m *serviceManager) Repository() repositories.Repository { return m.repo }
