package store

// schema is applied on every Open. Every statement is idempotent so the
// store can be reopened against an existing database file without error.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	chat_id    INTEGER PRIMARY KEY,
	session_id TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_entries (
	id          TEXT PRIMARY KEY,
	chat_id     INTEGER NOT NULL,
	topic_key   TEXT,
	content     TEXT NOT NULL,
	sector      TEXT NOT NULL CHECK (sector IN ('semantic', 'episodic')),
	salience    REAL NOT NULL DEFAULT 1.0,
	created_at  INTEGER NOT NULL,
	accessed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_chat ON memory_entries(chat_id);
CREATE INDEX IF NOT EXISTS idx_memory_chat_salience ON memory_entries(chat_id, salience, accessed_at);

CREATE VIRTUAL TABLE IF NOT EXISTS memory_entries_fts USING fts5(
	content,
	content='memory_entries',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memory_entries_ai AFTER INSERT ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS memory_entries_ad AFTER DELETE ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(memory_entries_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;
CREATE TRIGGER IF NOT EXISTS memory_entries_au AFTER UPDATE OF content ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(memory_entries_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	INSERT INTO memory_entries_fts(rowid, content) VALUES (new.rowid, new.content);
END;

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id          TEXT PRIMARY KEY,
	chat_id     INTEGER NOT NULL,
	prompt      TEXT NOT NULL,
	schedule    TEXT NOT NULL,
	next_run    INTEGER NOT NULL,
	last_run    INTEGER,
	last_result TEXT,
	status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused')),
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON scheduled_tasks(status, next_run);
CREATE INDEX IF NOT EXISTS idx_tasks_chat ON scheduled_tasks(chat_id);

CREATE TABLE IF NOT EXISTS conversation_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL,
	session_id TEXT,
	role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_chat ON conversation_log(chat_id, created_at);

CREATE TABLE IF NOT EXISTS usage_ledger (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id     INTEGER NOT NULL,
	session_id  TEXT,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read    INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	did_compact   INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_chat ON usage_ledger(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_ledger(session_id, created_at);

CREATE TABLE IF NOT EXISTS contacts (
	id               TEXT PRIMARY KEY,
	chat_id          INTEGER NOT NULL,
	name             TEXT NOT NULL,
	email            TEXT,
	phone            TEXT,
	company          TEXT,
	role             TEXT,
	notes            TEXT,
	photo_path       TEXT,
	source           TEXT NOT NULL,
	first_seen       INTEGER NOT NULL,
	last_contact     INTEGER NOT NULL,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_chat ON contacts(chat_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_chat_email ON contacts(chat_id, email) WHERE email IS NOT NULL AND email != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_chat_name ON contacts(chat_id, lower(name)) WHERE (email IS NULL OR email = '');

CREATE VIRTUAL TABLE IF NOT EXISTS contacts_fts USING fts5(
	name, email, company, role, notes,
	content='contacts',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS contacts_ai AFTER INSERT ON contacts BEGIN
	INSERT INTO contacts_fts(rowid, name, email, company, role, notes)
	VALUES (new.rowid, new.name, new.email, new.company, new.role, new.notes);
END;
CREATE TRIGGER IF NOT EXISTS contacts_ad AFTER DELETE ON contacts BEGIN
	INSERT INTO contacts_fts(contacts_fts, rowid, name, email, company, role, notes)
	VALUES ('delete', old.rowid, old.name, old.email, old.company, old.role, old.notes);
END;
CREATE TRIGGER IF NOT EXISTS contacts_au AFTER UPDATE ON contacts BEGIN
	INSERT INTO contacts_fts(contacts_fts, rowid, name, email, company, role, notes)
	VALUES ('delete', old.rowid, old.name, old.email, old.company, old.role, old.notes);
	INSERT INTO contacts_fts(rowid, name, email, company, role, notes)
	VALUES (new.rowid, new.name, new.email, new.company, new.role, new.notes);
END;

CREATE TABLE IF NOT EXISTS interactions (
	id         TEXT PRIMARY KEY,
	chat_id    INTEGER NOT NULL,
	contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	type       TEXT NOT NULL CHECK (type IN ('email', 'meeting', 'call', 'note', 'other')),
	source     TEXT NOT NULL CHECK (source IN ('manual', 'auto')),
	summary    TEXT,
	date       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_contact ON interactions(contact_id);
`
