// Package docval cross-checks the fields extracted from a credit
// application's documents for logical and textual consistency.
package docval

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/andes-fintech/condor/internal/domain"
)

// Check names, in the fixed order findings are returned.
const (
	CheckIdentityInPOA   = "identity_in_power_of_attorney"
	CheckCreditAuthority = "credit_granting_authority"
	CheckTaxIDs          = "tax_id_consistency"
	CheckCompanyNames    = "company_name_consistency"
	CheckSigners         = "balance_sheet_signers"
)

// powerKeywords are scanned case-insensitively against a
// representative's free-text faculties to establish credit-granting
// authority.
var powerKeywords = []string{
	"credit",
	"line of credit",
	"indebtedness",
	"financing",
	"contract execution",
	"obligations",
	"general representation",
	"general power",
	"broad powers",
	"administrative acts",
	"disposition acts",
	"contracting",
	"opening accounts",
}

// Validator runs the five consistency checks. Pure computation over
// already-deserialized documents; no I/O.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger.With("component", "doc-validator")}
}

// docSet is the typed view over the supplied documents; the first
// document of each kind wins.
type docSet struct {
	identity *domain.IdentityDocument
	poa      *domain.PowerOfAttorney
	balance  *domain.BalanceSheet
	income   *domain.IncomeStatement
	registry *domain.TaxRegistry
}

func collect(docs []domain.Document) docSet {
	var set docSet
	for _, doc := range docs {
		switch d := doc.(type) {
		case *domain.IdentityDocument:
			if set.identity == nil {
				set.identity = d
			}
		case domain.IdentityDocument:
			if set.identity == nil {
				set.identity = &d
			}
		case *domain.PowerOfAttorney:
			if set.poa == nil {
				set.poa = d
			}
		case domain.PowerOfAttorney:
			if set.poa == nil {
				set.poa = &d
			}
		case *domain.BalanceSheet:
			if set.balance == nil {
				set.balance = d
			}
		case domain.BalanceSheet:
			if set.balance == nil {
				set.balance = &d
			}
		case *domain.IncomeStatement:
			if set.income == nil {
				set.income = d
			}
		case domain.IncomeStatement:
			if set.income == nil {
				set.income = &d
			}
		case *domain.TaxRegistry:
			if set.registry == nil {
				set.registry = d
			}
		case domain.TaxRegistry:
			if set.registry == nil {
				set.registry = &d
			}
		}
	}
	return set
}

// Validate runs all five checks and always returns exactly five
// findings, in fixed order, regardless of which documents are present.
func (v *Validator) Validate(app *domain.Application, docs []domain.Document) []domain.Finding {
	set := collect(docs)

	identityFinding, representative := v.checkIdentityInPOA(app, set)
	findings := []domain.Finding{
		identityFinding,
		v.checkCreditAuthority(representative),
		v.checkTaxIDs(app, set),
		v.checkCompanyNames(set),
		v.checkSigners(app, set),
	}

	failed := 0
	for _, f := range findings {
		if !f.Passed {
			failed++
		}
	}
	v.logger.Info("documents validated", "checks", len(findings), "failed", failed)

	return findings
}

// HasHardFailure reports whether any of the authority checks failed
// with reject severity; callers use it to stop before exploring the
// graph or running rules.
func HasHardFailure(findings []domain.Finding) bool {
	for _, f := range findings {
		if !f.Passed && f.Severity == domain.OutcomeReject {
			return true
		}
	}
	return false
}

// checkIdentityInPOA verifies the applicant appears as an empowered
// representative. Returns the matched representative for the
// authority check that follows.
func (v *Validator) checkIdentityInPOA(app *domain.Application, set docSet) (domain.Finding, *domain.Representative) {
	finding := domain.Finding{
		Check:     CheckIdentityInPOA,
		Documents: []domain.DocumentKind{domain.DocIdentity, domain.DocPowerOfAttorney},
	}

	applicantID := app.ApplicantID
	if set.identity != nil && set.identity.NationalID != "" {
		applicantID = set.identity.NationalID
	}

	if applicantID == "" {
		finding.Severity = domain.OutcomeReject
		finding.Message = "applicant identity document missing and no applicant id on record"
		return finding, nil
	}
	if set.poa == nil {
		finding.Severity = domain.OutcomeReject
		finding.Message = "power of attorney document missing"
		return finding, nil
	}

	for i := range set.poa.Representatives {
		rep := &set.poa.Representatives[i]
		if idsMatch(applicantID, rep.DocumentID) {
			finding.Passed = true
			finding.Severity = domain.OutcomeApprove
			finding.Message = fmt.Sprintf("applicant %s is listed as representative %q (%s)",
				applicantID, rep.Name, roleOr(rep.Role, "unspecified role"))
			return finding, rep
		}
	}

	finding.Severity = domain.OutcomeReject
	finding.Message = fmt.Sprintf("applicant %s is not among the %d representative(s) in the power of attorney",
		applicantID, len(set.poa.Representatives))
	return finding, nil
}

// checkCreditAuthority scans the matched representative's faculties
// for credit-granting keywords.
func (v *Validator) checkCreditAuthority(rep *domain.Representative) domain.Finding {
	finding := domain.Finding{
		Check:     CheckCreditAuthority,
		Documents: []domain.DocumentKind{domain.DocPowerOfAttorney},
	}

	if rep == nil {
		finding.Severity = domain.OutcomeReject
		finding.Message = "no empowered representative matched the applicant"
		return finding
	}

	powers := strings.ToLower(rep.Powers)
	for _, keyword := range powerKeywords {
		if strings.Contains(powers, keyword) {
			finding.Passed = true
			finding.Severity = domain.OutcomeApprove
			finding.Message = fmt.Sprintf("representative %q holds credit-related faculties (%q)", rep.Name, keyword)
			return finding
		}
	}

	finding.Severity = domain.OutcomeReview
	finding.Message = fmt.Sprintf("representative %q found but no credit-granting faculties identified in the power of attorney", rep.Name)
	return finding
}

// taxIDSource pairs one document's tax id with where it came from.
type taxIDSource struct {
	source string
	value  string
}

func (v *Validator) checkTaxIDs(app *domain.Application, set docSet) domain.Finding {
	finding := domain.Finding{Check: CheckTaxIDs}

	var sources []taxIDSource
	add := func(source, value string, kind domain.DocumentKind) {
		if value == "" {
			return
		}
		sources = append(sources, taxIDSource{source: source, value: value})
		if kind != "" {
			finding.Documents = append(finding.Documents, kind)
		}
	}

	add("application", app.CompanyTaxID, "")
	if set.poa != nil {
		add("power of attorney", set.poa.TaxID, domain.DocPowerOfAttorney)
	}
	if set.balance != nil {
		add("balance sheet", set.balance.TaxID, domain.DocBalanceSheet)
	}
	if set.income != nil {
		add("income statement", set.income.TaxID, domain.DocIncomeStatement)
	}
	if set.registry != nil {
		add("tax registry", set.registry.TaxID, domain.DocTaxRegistry)
	}

	if len(sources) < 2 {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = "not enough tax id sources to cross-check"
		return finding
	}

	reference := digitsOnly(sources[0].value)
	for _, s := range sources[1:] {
		if digitsOnly(s.value) != reference {
			var listed []string
			for _, src := range sources {
				listed = append(listed, fmt.Sprintf("%s=%s", src.source, src.value))
			}
			finding.Severity = domain.OutcomeReview
			finding.Message = "tax ids diverge across documents: " + strings.Join(listed, ", ")
			return finding
		}
	}

	finding.Passed = true
	finding.Severity = domain.OutcomeApprove
	finding.Message = fmt.Sprintf("tax id consistent across %d source(s)", len(sources))
	return finding
}

func (v *Validator) checkCompanyNames(set docSet) domain.Finding {
	finding := domain.Finding{Check: CheckCompanyNames}

	var names []string
	add := func(name string, kind domain.DocumentKind) {
		if name == "" {
			return
		}
		names = append(names, name)
		finding.Documents = append(finding.Documents, kind)
	}

	if set.poa != nil {
		add(set.poa.CompanyName, domain.DocPowerOfAttorney)
	}
	if set.balance != nil {
		add(set.balance.CompanyName, domain.DocBalanceSheet)
	}
	if set.income != nil {
		add(set.income.CompanyName, domain.DocIncomeStatement)
	}
	if set.registry != nil {
		add(set.registry.CompanyName, domain.DocTaxRegistry)
	}

	if len(names) < 2 {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = "not enough company name sources to cross-check"
		return finding
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if !namesSimilar(names[i], names[j]) {
				finding.Severity = domain.OutcomeReview
				finding.Message = fmt.Sprintf("company names diverge across documents: %q vs %q (all: %s)",
					names[i], names[j], strings.Join(names, "; "))
				return finding
			}
		}
	}

	finding.Passed = true
	finding.Severity = domain.OutcomeApprove
	finding.Message = fmt.Sprintf("company name consistent across %d source(s)", len(names))
	return finding
}

func (v *Validator) checkSigners(app *domain.Application, set docSet) domain.Finding {
	finding := domain.Finding{
		Check:     CheckSigners,
		Documents: []domain.DocumentKind{domain.DocBalanceSheet, domain.DocPowerOfAttorney},
	}

	if set.balance == nil || len(set.balance.Signers) == 0 {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = "balance sheet lists no signers to verify"
		return finding
	}

	known := make(map[string]string)
	if id := normalizeID(app.ApplicantID); id != "" {
		known[id] = "applicant"
	}
	if set.identity != nil {
		if id := normalizeID(set.identity.NationalID); id != "" {
			known[id] = "applicant"
		}
	}
	if set.poa != nil {
		for _, rep := range set.poa.Representatives {
			if id := normalizeID(rep.DocumentID); id != "" {
				known[id] = rep.Name
			}
		}
	}

	if len(known) == 0 {
		finding.Severity = domain.OutcomeReview
		finding.Message = "no known identities available to verify balance sheet signers against"
		return finding
	}

	var matched, all []string
	for _, signer := range set.balance.Signers {
		all = append(all, signerLabel(signer))
		if _, ok := known[normalizeID(signer.NationalID)]; ok {
			matched = append(matched, signerLabel(signer))
		}
	}

	if len(matched) > 0 {
		finding.Passed = true
		finding.Severity = domain.OutcomeApprove
		finding.Message = "balance sheet signed by known identity: " + strings.Join(matched, ", ")
		return finding
	}

	finding.Severity = domain.OutcomeReview
	finding.Message = fmt.Sprintf("no balance sheet signer matches a known identity (signers: %s)",
		strings.Join(all, ", "))
	return finding
}

func signerLabel(s domain.Signer) string {
	if s.Name != "" {
		return fmt.Sprintf("%s (%s)", s.Name, s.NationalID)
	}
	return s.NationalID
}

func roleOr(role, fallback string) string {
	if role != "" {
		return role
	}
	return fallback
}

// digitsOnly keeps the numeric characters of an identifier, leading
// zeros included; tax ids are fixed width so zeros are significant.
func digitsOnly(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
