package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaAccessEvents = `
CREATE TABLE IF NOT EXISTS access_events (
    id TEXT PRIMARY KEY,
    credential_id TEXT NOT NULL,
    raw_timestamp TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    reader_kind TEXT NOT NULL,
    access_permitted INTEGER,
    fraudulent INTEGER,
    origin TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_access_events_credential ON access_events(credential_id);
CREATE INDEX IF NOT EXISTS idx_access_events_identity ON access_events(credential_id, raw_timestamp);
CREATE INDEX IF NOT EXISTS idx_access_events_timestamp ON access_events(timestamp);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    generated_at TIMESTAMP NOT NULL,
    results TEXT NOT NULL,
    counts TEXT NOT NULL,
    no_data INTEGER NOT NULL DEFAULT 0,
    historical_count INTEGER NOT NULL DEFAULT 0,
    live_count INTEGER NOT NULL DEFAULT 0,
    duplicate_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reports_generated ON reports(generated_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    points INTEGER NOT NULL DEFAULT 1,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAccessEvents,
		schemaReports,
		schemaRuleConfigs,
	}
}
