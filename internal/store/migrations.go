package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS mutations (
	id          TEXT PRIMARY KEY,
	resource    TEXT NOT NULL,
	operation   TEXT NOT NULL,
	remote_id   INTEGER,
	payload     TEXT NOT NULL DEFAULT '',
	dry_run     INTEGER NOT NULL DEFAULT 0,
	status      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mutations_created_at ON mutations(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE mutations ADD COLUMN completed_at DATETIME;

CREATE INDEX IF NOT EXISTS idx_mutations_remote ON mutations(resource, remote_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
