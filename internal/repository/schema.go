package repository

// Schema definitions for the Condor database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    applicant_name TEXT,
    company_tax_id TEXT NOT NULL,
    company_name TEXT,
    requested_amount REAL NOT NULL,
    currency TEXT,
    monthly_revenue REAL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications(tenant_id);
CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(tenant_id, applicant_id);
CREATE INDEX IF NOT EXISTS idx_applications_company ON applications(tenant_id, company_tax_id);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    kind TEXT NOT NULL DEFAULT 'comparison',
    field TEXT,
    operator TEXT,
    threshold REAL NOT NULL DEFAULT 0,
    expression TEXT,
    weight REAL NOT NULL DEFAULT 1.0,
    outcome TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    display_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant ON rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(tenant_id, enabled);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    application_id TEXT,
    recommendation TEXT NOT NULL,
    score REAL NOT NULL,
    risk_tier TEXT NOT NULL,
    network_penalty REAL NOT NULL DEFAULT 0,
    summary TEXT,
    timestamp TIMESTAMP NOT NULL,
    verdicts TEXT,
    findings TEXT,
    breakdown TEXT,
    alerts TEXT,
    network_stats TEXT,
    credit_line TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_tenant ON evaluations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_application ON evaluations(tenant_id, application_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_recommendation ON evaluations(tenant_id, recommendation);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaRules,
		schemaEvaluations,
	}
}
