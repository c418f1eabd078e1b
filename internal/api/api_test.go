package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andes-fintech/condor/internal/decision"
	"github.com/andes-fintech/condor/internal/docval"
	"github.com/andes-fintech/condor/internal/domain"
	"github.com/andes-fintech/condor/internal/graph"
	"github.com/andes-fintech/condor/internal/rules"
	"github.com/andes-fintech/condor/internal/scoring"
)

// healthyBureau answers every query with a clean report.
func healthyBureau(ctx context.Context, docKind, id string) (*domain.CreditReport, error) {
	report := &domain.CreditReport{RiskLabel: "RISK LOW"}
	if docKind == domain.DocKindCompany {
		report.Company = &domain.CompanyRecord{LegalName: "ACME TRADING S.A.C.", TaxStatus: "active"}
	} else {
		report.Person = &domain.PersonRecord{FullName: "JUAN PEREZ"}
	}
	return report, nil
}

// createTestServer wires an engine and processor over a fake bureau.
func createTestServer() *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	engine, _ := rules.NewEngine()
	engine.LoadRule(&domain.ComparisonRule{
		ID:        "min-equity",
		Name:      "Minimum Equity",
		Field:     "equity",
		Operator:  domain.OpGreaterOrEqual,
		Threshold: 10000,
		Weight:    1,
		Outcome:   domain.OutcomeApprove,
		Enabled:   true,
	})

	validator := docval.NewValidator(nil)
	explorer := graph.NewExplorer(domain.QuerierFunc(healthyBureau), nil)
	model := scoring.NewModel(nil)
	processor := decision.NewProcessor(validator, explorer, engine, model, 2, nil)

	return NewServer(cfg, nil, nil, nil, engine, processor, "test-v1")
}

func evaluationBody() []byte {
	req := EvaluationRequest{
		Application: ApplicationRequest{
			ApplicantID:     "12345678",
			ApplicantName:   "JUAN PEREZ",
			CompanyTaxID:    "20100012345",
			CompanyName:     "ACME TRADING S.A.C.",
			RequestedAmount: 50000,
			Currency:        "PEN",
			MonthlyRevenue:  40000,
		},
		Documents: &DocumentsPayload{
			Identity: &domain.IdentityDocument{
				NationalID: "12345678",
				FullName:   "JUAN PEREZ",
			},
			PowerOfAttorney: &domain.PowerOfAttorney{
				TaxID:       "20100012345",
				CompanyName: "ACME TRADING S.A.C.",
				Representatives: []domain.Representative{{
					DocumentID: "12345678",
					Name:       "JUAN PEREZ",
					Powers:     "general power for financing and contracting",
				}},
			},
			BalanceSheet: &domain.BalanceSheet{
				TaxID:            "20100012345",
				CompanyName:      "ACME TRADING S.A.C.",
				TotalAssets:      100000,
				TotalLiabilities: 40000,
				Equity:           60000,
				Signers:          []domain.Signer{{NationalID: "12345678", Name: "JUAN PEREZ"}},
			},
			IncomeStatement: &domain.IncomeStatement{
				TaxID:       "20100012345",
				CompanyName: "ACME TRADING S.A.C.",
				Revenue:     480000,
				NetIncome:   48000,
			},
			TaxRegistry: &domain.TaxRegistry{
				TaxID:       "20100012345",
				CompanyName: "ACME TRADING S.A.C.",
				Status:      "active",
			},
		},
	}
	body, _ := json.Marshal(req)
	return body
}

func TestEvaluateEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulEvaluation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(evaluationBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.EvaluationResult
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ID == "" {
			t.Error("expected evaluation id in response")
		}
		if resp.ApplicationID == "" {
			t.Error("expected application id to be assigned")
		}
		if resp.Recommendation != domain.RecommendApprove {
			t.Errorf("expected APPROVE, got %s", resp.Recommendation)
		}
		if len(resp.Findings) != 6 {
			t.Errorf("expected 6 findings, got %d", len(resp.Findings))
		}
		if resp.Graph == nil || resp.Graph.TotalNodes != 2 {
			t.Error("expected explored graph with both roots")
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingIdentifiers", func(t *testing.T) {
		body, _ := json.Marshal(EvaluationRequest{
			Application: ApplicationRequest{RequestedAmount: 1000},
		})
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		body, _ := json.Marshal(EvaluationRequest{
			Application: ApplicationRequest{
				ApplicantID:     "12345678",
				CompanyTaxID:    "20100012345",
				RequestedAmount: -100,
			},
		})
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluations", bytes.NewBuffer(evaluationBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestNetworkCheckEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulCheck", func(t *testing.T) {
		body, _ := json.Marshal(NetworkCheckRequest{
			ApplicantID:  "12345678",
			CompanyTaxID: "20100012345",
			MaxDepth:     1,
		})
		req := httptest.NewRequest(http.MethodPost, "/network-checks", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp domain.EvaluationResult
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Breakdown == nil {
			t.Error("expected score breakdown in network check response")
		}
		if resp.Metadata.NodesExplored != 2 {
			t.Errorf("expected 2 nodes explored, got %d", resp.Metadata.NodesExplored)
		}
	})

	t.Run("MissingIdentifiers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/network-checks", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("ListRules", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Rules []domain.ComparisonRule `json:"rules"`
			Count int                     `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 || len(resp.Rules) != 1 {
			t.Errorf("expected 1 loaded rule, got %d", resp.Count)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/min-equity", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var rule domain.ComparisonRule
		json.Unmarshal(rr.Body.Bytes(), &rule)
		if rule.ID != "min-equity" {
			t.Errorf("expected rule min-equity, got %s", rule.ID)
		}
	})

	t.Run("GetRuleNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rules/no-such-rule", nil)
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateRule", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{
			ID:        "max-leverage",
			Name:      "Maximum Leverage",
			Field:     "debt_to_equity",
			Operator:  domain.OpLessOrEqual,
			Threshold: 3,
			Weight:    1,
			Outcome:   domain.OutcomeApprove,
			Enabled:   true,
		})
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{
			ID:         "bad-expr",
			Name:       "Broken",
			Kind:       domain.RuleKindExpression,
			Expression: "fields.equity >",
			Weight:     1,
			Outcome:    domain.OutcomeApprove,
			Enabled:    true,
		})
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleMissingFields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
