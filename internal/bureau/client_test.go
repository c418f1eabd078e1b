package bureau

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andes-fintech/condor/internal/cache"
	"github.com/andes-fintech/condor/internal/domain"
)

func TestClientQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/reports/6/20100012345":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"riskLabel": "RISK LOW",
				"company": {"legalName": "ACME S.A.C.", "taxStatus": "active"},
				"debts": [{"creditor": "BANK A", "balance": 1500, "daysOverdue": 0}]
			}`))
		case "/reports/1/00000000":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(domain.BureauConfig{
		BaseURL:     server.URL,
		APIKey:      "secret",
		TimeoutSecs: 5,
	}, nil)

	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		report, err := client.Query(ctx, domain.DocKindCompany, "20100012345")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if report == nil || report.Company == nil {
			t.Fatal("expected company report")
		}
		if report.Company.LegalName != "ACME S.A.C." {
			t.Errorf("unexpected legal name: %s", report.Company.LegalName)
		}
		if len(report.Debts) != 1 {
			t.Errorf("expected 1 debt, got %d", len(report.Debts))
		}
	})

	t.Run("absent record", func(t *testing.T) {
		report, err := client.Query(ctx, domain.DocKindPerson, "00000000")
		if err != nil {
			t.Fatalf("404 must not be an error: %v", err)
		}
		if report != nil {
			t.Error("expected nil report for absent record")
		}
	})

	t.Run("server error", func(t *testing.T) {
		if _, err := client.Query(ctx, domain.DocKindPerson, "99999999"); err == nil {
			t.Error("expected error for server failure")
		}
	})

	t.Run("empty identifier", func(t *testing.T) {
		if _, err := client.Query(ctx, domain.DocKindPerson, ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// countingQuerier records how often the underlying bureau is hit.
type countingQuerier struct {
	calls  int
	report *domain.CreditReport
	err    error
}

func (q *countingQuerier) Query(context.Context, string, string) (*domain.CreditReport, error) {
	q.calls++
	return q.report, q.err
}

func TestCachedQuerier(t *testing.T) {
	ctx := context.Background()
	cfg := domain.BureauConfig{CacheTTLSecs: 60}

	t.Run("second query served from cache", func(t *testing.T) {
		upstream := &countingQuerier{report: &domain.CreditReport{RiskLabel: "RISK LOW"}}
		q := NewCachedQuerier(upstream, cache.NewLRUCache(10), "tenant-001", cfg, nil)

		for i := 0; i < 3; i++ {
			report, err := q.Query(ctx, domain.DocKindPerson, "12345678")
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if report == nil || report.RiskLabel != "RISK LOW" {
				t.Fatalf("unexpected report: %+v", report)
			}
		}

		if upstream.calls != 1 {
			t.Errorf("expected 1 upstream call, got %d", upstream.calls)
		}
	})

	t.Run("absent records are not cached", func(t *testing.T) {
		upstream := &countingQuerier{}
		q := NewCachedQuerier(upstream, cache.NewLRUCache(10), "tenant-001", cfg, nil)

		q.Query(ctx, domain.DocKindPerson, "00000000")
		q.Query(ctx, domain.DocKindPerson, "00000000")

		if upstream.calls != 2 {
			t.Errorf("expected 2 upstream calls for uncached misses, got %d", upstream.calls)
		}
	})

	t.Run("errors pass through", func(t *testing.T) {
		upstream := &countingQuerier{err: errors.New("bureau down")}
		q := NewCachedQuerier(upstream, cache.NewLRUCache(10), "tenant-001", cfg, nil)

		if _, err := q.Query(ctx, domain.DocKindPerson, "12345678"); err == nil {
			t.Error("expected upstream error to surface")
		}
	})

	t.Run("tenants do not share entries", func(t *testing.T) {
		shared := cache.NewLRUCache(10)
		upstreamA := &countingQuerier{report: &domain.CreditReport{RiskLabel: "RISK LOW"}}
		upstreamB := &countingQuerier{report: &domain.CreditReport{RiskLabel: "RISK HIGH"}}

		qa := NewCachedQuerier(upstreamA, shared, "tenant-a", cfg, nil)
		qb := NewCachedQuerier(upstreamB, shared, "tenant-b", cfg, nil)

		qa.Query(ctx, domain.DocKindPerson, "12345678")
		report, err := qb.Query(ctx, domain.DocKindPerson, "12345678")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if report.RiskLabel != "RISK HIGH" {
			t.Errorf("tenant-b must not see tenant-a's cached report, got %s", report.RiskLabel)
		}
	})
}

func TestClientTimeoutConfig(t *testing.T) {
	client := NewClient(domain.BureauConfig{TimeoutSecs: 0}, nil)
	if client.http.Timeout != 10*time.Second {
		t.Errorf("expected default 10s timeout, got %s", client.http.Timeout)
	}
}
