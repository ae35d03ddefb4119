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

CREATE TABLE IF NOT EXISTS notifications (
	user_id     TEXT NOT NULL,
	id          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	message     TEXT NOT NULL,
	ticket_ref  TEXT NOT NULL DEFAULT '',
	read        INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_user
	ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tickets (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'open',
	owner_id       TEXT NOT NULL,
	owner_name     TEXT NOT NULL DEFAULT '',
	assignee_id    TEXT NOT NULL DEFAULT '',
	assignee_name  TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
