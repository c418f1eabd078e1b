package domain

import (
	"context"
)

// Bureau document kind codes used by the query protocol.
const (
	// DocKindPerson queries by national identity number.
	DocKindPerson = "1"

	// DocKindCompany queries by company tax identifier.
	DocKindCompany = "6"
)

// BureauQuerier supplies one node's worth of relationship, debt and
// risk data per query. A nil report with a nil error means the bureau
// has no record for the identifier. Implementations must surface
// timeouts and transport failures as errors; the explorer treats any
// failure as "absent" and continues the traversal.
type BureauQuerier interface {
	Query(ctx context.Context, docKind, id string) (*CreditReport, error)
}

// QuerierFunc adapts a function to the BureauQuerier interface.
type QuerierFunc func(ctx context.Context, docKind, id string) (*CreditReport, error)

// Query calls f.
func (f QuerierFunc) Query(ctx context.Context, docKind, id string) (*CreditReport, error) {
	return f(ctx, docKind, id)
}

// CreditReport is the bureau's answer for a single identifier.
type CreditReport struct {
	RiskLabel string `json:"riskLabel"`

	Person  *PersonRecord  `json:"person,omitempty"`
	Company *CompanyRecord `json:"company,omitempty"`

	RepresentedBy    []BureauRelation `json:"representedBy,omitempty"`
	Represents       []BureauRelation `json:"represents,omitempty"`
	RelatedCompanies []BureauRelation `json:"relatedCompanies,omitempty"`

	Debts []BureauDebt `json:"debts,omitempty"`
}

// PersonRecord is the demographic block for a natural person.
type PersonRecord struct {
	FullName string `json:"fullName"`
}

// CompanyRecord is the demographic block for a company.
type CompanyRecord struct {
	LegalName string `json:"legalName"`

	// TaxStatus is the registry standing, e.g. "active".
	TaxStatus string `json:"taxStatus,omitempty"`
}

// BureauRelation links a reported identifier to another party.
type BureauRelation struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	RiskLabel string `json:"riskLabel,omitempty"`
}

// BureauDebt is one obligation as reported by the bureau.
type BureauDebt struct {
	Creditor       string  `json:"creditor"`
	Type           string  `json:"type,omitempty"`
	OriginalAmount float64 `json:"originalAmount"`
	Balance        float64 `json:"balance"`
	DaysOverdue    int     `json:"daysOverdue"`
	Rating         string  `json:"rating,omitempty"`
	DueDate        string  `json:"dueDate,omitempty"`
}

// BureauConfig holds bureau client settings.
type BureauConfig struct {
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"-"`
	TimeoutSecs int    `json:"timeoutSecs"`

	// MaxDepth bounds graph exploration (1-3).
	MaxDepth int `json:"maxDepth"`

	// CacheTTLSecs is how long bureau responses stay cached.
	CacheTTLSecs int `json:"cacheTtlSecs"`
}
