// Package worker provides async application processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/andes-fintech/condor/internal/decision"
	"github.com/andes-fintech/condor/internal/domain"
)

// Worker processes credit applications asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	processor *decision.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, processor *decision.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startTenantWorker subscribes one tenant to the application topic.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processApplication(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicApplicationReceived,
	)

	return nil
}

// DocumentSet carries the extracted documents of one application
// message, one slot per kind.
type DocumentSet struct {
	Identity        *domain.IdentityDocument `json:"identity,omitempty"`
	PowerOfAttorney *domain.PowerOfAttorney  `json:"powerOfAttorney,omitempty"`
	BalanceSheet    *domain.BalanceSheet     `json:"balanceSheet,omitempty"`
	IncomeStatement *domain.IncomeStatement  `json:"incomeStatement,omitempty"`
	TaxRegistry     *domain.TaxRegistry      `json:"taxRegistry,omitempty"`
}

func (s *DocumentSet) documents() []domain.Document {
	if s == nil {
		return nil
	}
	var docs []domain.Document
	if s.Identity != nil {
		docs = append(docs, s.Identity)
	}
	if s.PowerOfAttorney != nil {
		docs = append(docs, s.PowerOfAttorney)
	}
	if s.BalanceSheet != nil {
		docs = append(docs, s.BalanceSheet)
	}
	if s.IncomeStatement != nil {
		docs = append(docs, s.IncomeStatement)
	}
	if s.TaxRegistry != nil {
		docs = append(docs, s.TaxRegistry)
	}
	return docs
}

// ApplicationMessage is the message payload for application processing.
type ApplicationMessage struct {
	TraceID     string             `json:"traceId,omitempty"`
	Application domain.Application `json:"application"`
	Documents   *DocumentSet       `json:"documents,omitempty"`
}

// processApplication evaluates one application through the pipeline.
func (w *Worker) processApplication(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var appMsg ApplicationMessage
	if err := json.Unmarshal(msg.Payload, &appMsg); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if appMsg.Application.TenantID != "" {
		tenantID = appMsg.Application.TenantID
	}

	traceID := appMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing application",
		"application_id", appMsg.Application.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	result, err := w.processor.Evaluate(ctx, tenantID, &appMsg.Application, appMsg.Documents.documents())
	if err != nil {
		slog.Error("evaluation failed",
			"application_id", appMsg.Application.ID,
			"error", err,
		)
		return err
	}
	result.Metadata.TraceID = traceID

	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, tenantID, result); err != nil {
			slog.Error("failed to save evaluation",
				"application_id", appMsg.Application.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicEvaluationCompleted, resultPayload); err != nil {
		slog.Error("failed to publish evaluation",
			"application_id", appMsg.Application.ID,
			"error", err,
		)
	}

	if shouldAlert(result) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"application_id", appMsg.Application.ID,
				"error", err,
			)
		}
	}

	slog.Info("application processed",
		"application_id", appMsg.Application.ID,
		"tenant_id", tenantID,
		"recommendation", result.Recommendation,
		"score", result.Score,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// shouldAlert reports whether an evaluation warrants its own alert
// message: a rejection or any critical network alert.
func shouldAlert(result *domain.EvaluationResult) bool {
	if result.Recommendation == domain.RecommendReject {
		return true
	}
	for _, alert := range result.Alerts {
		if alert.Severity == domain.SeverityCritical {
			return true
		}
	}
	return false
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
