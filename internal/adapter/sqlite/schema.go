package sqlite

const currentSchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);

-- One row per pipeline invocation
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  status TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT ''
);

-- Per-event precursor fetches and skips
CREATE TABLE IF NOT EXISTS fetches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id),
  main_event INTEGER NOT NULL,
  file TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  row_count INTEGER NOT NULL DEFAULT 0,
  byte_count INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  fetched_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetches_run ON fetches(run_id);
CREATE INDEX IF NOT EXISTS idx_fetches_main_event ON fetches(main_event);
`
