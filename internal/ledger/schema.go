package ledger

// Schema is the base schema applied on startup. Later additions are handled
// by best-effort migrations in NewService so existing databases keep working.
const Schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	action_type TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.5,
	approval_count INTEGER NOT NULL DEFAULT 0,
	rejection_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(agent_type, action_type, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_patterns_lookup ON patterns(agent_type, action_type, fingerprint);

CREATE TABLE IF NOT EXISTS feedback_events (
	id TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL,
	feedback_type TEXT NOT NULL DEFAULT 'explicit',
	was_approved BOOLEAN NOT NULL DEFAULT 0,
	was_successful BOOLEAN NOT NULL DEFAULT 0,
	user_comment TEXT DEFAULT '',
	context_text TEXT DEFAULT '',
	fingerprint TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(decision_id, feedback_type)
);
CREATE INDEX IF NOT EXISTS idx_feedback_decision ON feedback_events(decision_id);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	action_type TEXT NOT NULL,
	payload TEXT DEFAULT '{}',
	reasoning TEXT DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	context_text TEXT DEFAULT '',
	risks TEXT DEFAULT '[]',
	alternatives TEXT DEFAULT '[]',
	verdict TEXT DEFAULT '',
	degraded BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'proposed',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);
CREATE INDEX IF NOT EXISTS idx_decisions_agent ON decisions(agent_type);

CREATE TABLE IF NOT EXISTS auto_executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_auto_exec_agent ON auto_executions(agent_type, executed_at);

CREATE TABLE IF NOT EXISTS thread_records (
	platform TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	thread_name TEXT DEFAULT '',
	is_group BOOLEAN NOT NULL DEFAULT 0,
	items_extracted INTEGER NOT NULL DEFAULT 0,
	items_rejected INTEGER NOT NULL DEFAULT 0,
	avg_participation REAL NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT 'active',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (platform, thread_id)
);

CREATE TABLE IF NOT EXISTS thread_participation (
	platform TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	day TEXT NOT NULL,
	user_messages INTEGER NOT NULL DEFAULT 0,
	total_messages INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (platform, thread_id, day)
);

CREATE TABLE IF NOT EXISTS approval_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	approval_id TEXT UNIQUE NOT NULL,
	decision_id TEXT NOT NULL,
	agent_type TEXT DEFAULT '',
	action_type TEXT DEFAULT '',
	summary TEXT DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	responded_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_approval_status ON approval_requests(status);

CREATE TABLE IF NOT EXISTS scheduled_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_name TEXT UNIQUE NOT NULL,
	last_status TEXT DEFAULT '',
	last_run_at DATETIME,
	run_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
