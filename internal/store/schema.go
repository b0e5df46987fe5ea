package store

// One row per applied migration
const versionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v1 - pass and deletion history
const schemaV1 = `
-- One row per reconciliation pass
CREATE TABLE IF NOT EXISTS passes (
  id TEXT PRIMARY KEY,
  location TEXT NOT NULL,
  started_at_ms INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  added INTEGER NOT NULL DEFAULT 0,
  unchanged INTEGER NOT NULL DEFAULT 0,
  removed INTEGER NOT NULL DEFAULT 0,
  metadata_errors INTEGER NOT NULL DEFAULT 0,
  error TEXT
);

-- Audio files a pass added to or removed from the index
CREATE TABLE IF NOT EXISTS pass_changes (
  pass_id TEXT NOT NULL REFERENCES passes(id) ON DELETE CASCADE,
  change TEXT NOT NULL,
  audio_file TEXT NOT NULL,
  PRIMARY KEY (pass_id, change, audio_file)
);

-- User-requested deletions, including failed ones
CREATE TABLE IF NOT EXISTS deletions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  location TEXT NOT NULL,
  audio_file TEXT NOT NULL,
  metadata_file TEXT,
  deleted_files TEXT,
  deleted_at_ms INTEGER NOT NULL,
  error TEXT
);
`

// Schema v2 - lookup indexes for the history command
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_passes_location_started ON passes(location, started_at_ms);
CREATE INDEX IF NOT EXISTS idx_pass_changes_audio_file ON pass_changes(audio_file);
CREATE INDEX IF NOT EXISTS idx_deletions_location_at ON deletions(location, deleted_at_ms);
`
