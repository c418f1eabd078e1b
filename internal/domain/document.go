package domain

import (
	"time"
)

// DocumentKind identifies one of the five supported document types.
type DocumentKind string

const (
	DocIdentity        DocumentKind = "identity"
	DocPowerOfAttorney DocumentKind = "power_of_attorney"
	DocBalanceSheet    DocumentKind = "balance_sheet"
	DocIncomeStatement DocumentKind = "income_statement"
	DocTaxRegistry     DocumentKind = "tax_registry"
)

// Document is the closed set of extracted document payloads. The
// extractor collaborator produces these already typed; the engine
// never parses raw documents.
type Document interface {
	Kind() DocumentKind
}

// IdentityDocument is the applicant's national identity document.
type IdentityDocument struct {
	NationalID string `json:"nationalId"`
	FullName   string `json:"fullName"`
	BirthDate  string `json:"birthDate,omitempty"`
}

func (IdentityDocument) Kind() DocumentKind { return DocIdentity }

// Representative is one empowered person listed in a power of attorney.
type Representative struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`

	// Powers is the free-text description of granted faculties.
	Powers string `json:"powers,omitempty"`
}

// PowerOfAttorney lists the company's legal representatives.
type PowerOfAttorney struct {
	TaxID           string           `json:"taxId,omitempty"`
	CompanyName     string           `json:"companyName,omitempty"`
	Representatives []Representative `json:"representatives"`
}

func (PowerOfAttorney) Kind() DocumentKind { return DocPowerOfAttorney }

// Signer is one person who signed a financial statement.
type Signer struct {
	NationalID string `json:"nationalId"`
	Name       string `json:"name,omitempty"`
}

// BalanceSheet carries the extracted statement of financial position.
type BalanceSheet struct {
	TaxID            string   `json:"taxId,omitempty"`
	CompanyName      string   `json:"companyName,omitempty"`
	TotalAssets      float64  `json:"totalAssets"`
	TotalLiabilities float64  `json:"totalLiabilities"`
	Equity           float64  `json:"equity"`
	Signers          []Signer `json:"signers,omitempty"`
}

func (BalanceSheet) Kind() DocumentKind { return DocBalanceSheet }

// IncomeStatement carries the extracted results of operations.
type IncomeStatement struct {
	TaxID       string  `json:"taxId,omitempty"`
	CompanyName string  `json:"companyName,omitempty"`
	Revenue     float64 `json:"revenue"`
	NetIncome   float64 `json:"netIncome"`
}

func (IncomeStatement) Kind() DocumentKind { return DocIncomeStatement }

// TaxRegistry carries the extracted tax authority registration record.
type TaxRegistry struct {
	TaxID       string `json:"taxId"`
	CompanyName string `json:"companyName,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (TaxRegistry) Kind() DocumentKind { return DocTaxRegistry }

// Application is the credit application record: an applicant and the
// company requesting the line.
type Application struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`

	ApplicantID   string `json:"applicantId"`
	ApplicantName string `json:"applicantName,omitempty"`
	CompanyTaxID  string `json:"companyTaxId"`
	CompanyName   string `json:"companyName,omitempty"`

	RequestedAmount float64 `json:"requestedAmount"`
	Currency        string  `json:"currency,omitempty"`
	MonthlyRevenue  float64 `json:"monthlyRevenue,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Finding is the result of one cross-document consistency check.
// Severity reuses the rule outcome scale: Approve = pass/no issue,
// Review = soft mismatch, Reject = hard mismatch.
type Finding struct {
	Check     string         `json:"check"`
	Passed    bool           `json:"passed"`
	Severity  Outcome        `json:"severity"`
	Message   string         `json:"message"`
	Documents []DocumentKind `json:"documents,omitempty"`
}
