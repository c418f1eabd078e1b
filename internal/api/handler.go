package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andes-fintech/condor/internal/decision"
	"github.com/andes-fintech/condor/internal/domain"
	"github.com/andes-fintech/condor/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *rules.Engine
	processor *decision.Processor
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, processor *decision.Processor, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		processor: processor,
		version:   version,
	}
}

// ApplicationRequest is the application block of POST /evaluations.
type ApplicationRequest struct {
	ID              string  `json:"id,omitempty"`
	ApplicantID     string  `json:"applicantId"`
	ApplicantName   string  `json:"applicantName,omitempty"`
	CompanyTaxID    string  `json:"companyTaxId"`
	CompanyName     string  `json:"companyName,omitempty"`
	RequestedAmount float64 `json:"requestedAmount"`
	Currency        string  `json:"currency,omitempty"`
	MonthlyRevenue  float64 `json:"monthlyRevenue,omitempty"`
}

// DocumentsPayload carries the extracted documents, one slot per kind.
type DocumentsPayload struct {
	Identity        *domain.IdentityDocument `json:"identity,omitempty"`
	PowerOfAttorney *domain.PowerOfAttorney  `json:"powerOfAttorney,omitempty"`
	BalanceSheet    *domain.BalanceSheet     `json:"balanceSheet,omitempty"`
	IncomeStatement *domain.IncomeStatement  `json:"incomeStatement,omitempty"`
	TaxRegistry     *domain.TaxRegistry      `json:"taxRegistry,omitempty"`
}

func (p *DocumentsPayload) toDocuments() []domain.Document {
	if p == nil {
		return nil
	}
	var docs []domain.Document
	if p.Identity != nil {
		docs = append(docs, p.Identity)
	}
	if p.PowerOfAttorney != nil {
		docs = append(docs, p.PowerOfAttorney)
	}
	if p.BalanceSheet != nil {
		docs = append(docs, p.BalanceSheet)
	}
	if p.IncomeStatement != nil {
		docs = append(docs, p.IncomeStatement)
	}
	if p.TaxRegistry != nil {
		docs = append(docs, p.TaxRegistry)
	}
	return docs
}

// EvaluationRequest is the request body for POST /evaluations.
type EvaluationRequest struct {
	Application ApplicationRequest `json:"application"`
	Documents   *DocumentsPayload  `json:"documents,omitempty"`
}

// Evaluate handles POST /evaluations requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Application.ApplicantID == "" && req.Application.CompanyTaxID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application.applicantId or application.companyTaxId is required",
		})
		return
	}
	if req.Application.RequestedAmount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application.requestedAmount must not be negative",
		})
		return
	}

	appID := req.Application.ID
	if appID == "" {
		appID = uuid.New().String()
	}

	app := &domain.Application{
		ID:              appID,
		TenantID:        tenantID,
		ApplicantID:     req.Application.ApplicantID,
		ApplicantName:   req.Application.ApplicantName,
		CompanyTaxID:    req.Application.CompanyTaxID,
		CompanyName:     req.Application.CompanyName,
		RequestedAmount: req.Application.RequestedAmount,
		Currency:        req.Application.Currency,
		MonthlyRevenue:  req.Application.MonthlyRevenue,
		CreatedAt:       time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveApplication(ctx, tenantID, app); err != nil {
			slog.Error("failed to save application", "id", app.ID, "error", err)
		}
	}

	result, err := h.processor.Evaluate(ctx, tenantID, app, req.Documents.toDocuments())
	if err != nil {
		slog.Error("evaluation failed", "application_id", app.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}
	result.Metadata.TraceID = traceID

	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, tenantID, result); err != nil {
			slog.Error("failed to save evaluation", "id", result.ID, "error", err)
		}
	}

	h.publishCompleted(r, tenantID, result)

	writeJSON(w, http.StatusOK, result)
}

// NetworkCheckRequest is the request body for POST /network-checks.
type NetworkCheckRequest struct {
	ApplicantID  string `json:"applicantId,omitempty"`
	CompanyTaxID string `json:"companyTaxId,omitempty"`
	MaxDepth     int    `json:"maxDepth,omitempty"`
}

// NetworkCheck handles POST /network-checks requests: graph exploration
// and network scoring without documents or rules.
func (h *Handler) NetworkCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req NetworkCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ApplicantID == "" && req.CompanyTaxID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "applicantId or companyTaxId is required",
		})
		return
	}

	result, err := h.processor.NetworkCheck(ctx, tenantID, req.ApplicantID, req.CompanyTaxID, req.MaxDepth)
	if err != nil {
		slog.Error("network check failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "network check failed",
		})
		return
	}
	result.Metadata.TraceID = traceID

	if h.repo != nil {
		if err := h.repo.SaveEvaluation(ctx, tenantID, result); err != nil {
			slog.Error("failed to save network check", "id", result.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// GetApplication retrieves an application by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		slog.Error("failed to get application", "id", appID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Kind         domain.RuleKind `json:"kind,omitempty"`
	Field        string          `json:"field,omitempty"`
	Operator     domain.Operator `json:"operator,omitempty"`
	Threshold    float64         `json:"threshold,omitempty"`
	Expression   string          `json:"expression,omitempty"`
	Weight       float64         `json:"weight"`
	Outcome      domain.Outcome  `json:"outcome"`
	Enabled      bool            `json:"enabled"`
	DisplayOrder int             `json:"displayOrder,omitempty"`
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}

	rule := &domain.ComparisonRule{
		ID:           req.ID,
		TenantID:     GlobalTenantID,
		Name:         req.Name,
		Description:  req.Description,
		Kind:         req.Kind,
		Field:        req.Field,
		Operator:     req.Operator,
		Threshold:    req.Threshold,
		Expression:   req.Expression,
		Weight:       req.Weight,
		Outcome:      req.Outcome,
		Enabled:      req.Enabled,
		DisplayOrder: req.DisplayOrder,
	}

	// Validate by attempting to load; expression rules compile here.
	if err := h.engine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// publishCompleted emits the evaluation-completed event; alerts ride on
// their own topic so downstream consumers can subscribe selectively.
func (h *Handler) publishCompleted(r *http.Request, tenantID string, result *domain.EvaluationResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal evaluation event", "id", result.ID, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, tenantID, domain.TopicEvaluationCompleted, payload); err != nil {
		slog.Error("failed to publish evaluation event", "id", result.ID, "error", err)
	}

	for _, alert := range result.Alerts {
		if alert.Severity != domain.SeverityCritical {
			continue
		}
		data, err := json.Marshal(alert)
		if err != nil {
			continue
		}
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, data); err != nil {
			slog.Error("failed to publish alert", "evaluation_id", result.ID, "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
