package store

// SQL schema constants for the discovery persistence layer.

const schemaDiscoveredPairs = `
CREATE TABLE IF NOT EXISTS discovered_pairs (
    family TEXT NOT NULL,
    src_lang TEXT NOT NULL,
    tgt_lang TEXT NOT NULL,
    fetched_at TEXT NOT NULL,
    PRIMARY KEY (family, src_lang, tgt_lang)
);
CREATE INDEX IF NOT EXISTS idx_discovered_pairs_family ON discovered_pairs(family);
CREATE INDEX IF NOT EXISTS idx_discovered_pairs_fetched ON discovered_pairs(fetched_at);
`

const schemaDiscoveryMeta = `
CREATE TABLE IF NOT EXISTS discovery_meta (
    family TEXT PRIMARY KEY,
    last_refresh TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT ''
);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form
// the initial (version-1) database layout.
var allSchemas = []string{
	schemaDiscoveredPairs,
	schemaDiscoveryMeta,
	schemaMigrations,
}
