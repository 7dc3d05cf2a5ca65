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

CREATE TABLE IF NOT EXISTS persons (
	person_id  TEXT PRIMARY KEY,
	gov_id     TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS certificates (
	cert_number        TEXT PRIMARY KEY,
	cert_type          TEXT NOT NULL,
	receiver_id        TEXT NOT NULL REFERENCES persons(person_id),
	giver_id           TEXT NOT NULL REFERENCES persons(person_id),
	receiver_name_used TEXT NOT NULL,
	giver_name_used    TEXT NOT NULL,
	issued_at          DATETIME NOT NULL,
	valid_until        DATETIME NOT NULL,
	status             TEXT NOT NULL DEFAULT 'ISSUED'
		CHECK (status IN ('ISSUED', 'SIGN_REQUESTED', 'SIGNED')),
	sign_code          TEXT,
	sign_requested_at  DATETIME,
	signed_at          DATETIME,
	signed_method      TEXT,
	signed_by          TEXT,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificates_status ON certificates(status);
CREATE INDEX IF NOT EXISTS idx_certificates_receiver ON certificates(receiver_id);
CREATE INDEX IF NOT EXISTS idx_certificates_giver ON certificates(giver_id);

CREATE TABLE IF NOT EXISTS email_evidence (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	cert_number     TEXT,
	received_at     DATETIME NOT NULL,
	from_email      TEXT NOT NULL,
	subject         TEXT NOT NULL,
	body_hash       TEXT NOT NULL,
	message_id      TEXT,
	matched         INTEGER NOT NULL,
	notes           TEXT NOT NULL,
	mailbox_uid     INTEGER NOT NULL DEFAULT 0,
	scan_id         TEXT NOT NULL DEFAULT '',
	decode_warnings TEXT NOT NULL DEFAULT '',
	prev_hash       TEXT NOT NULL,
	chain_hash      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_cert ON email_evidence(cert_number);
CREATE INDEX IF NOT EXISTS idx_evidence_received ON email_evidence(received_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          DATETIME NOT NULL,
	actor       TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	before_json TEXT,
	after_json  TEXT,
	result      TEXT NOT NULL CHECK (result IN ('OK', 'ERROR')),
	message     TEXT NOT NULL DEFAULT '',
	prev_hash   TEXT NOT NULL,
	chain_hash  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts);

CREATE TRIGGER IF NOT EXISTS email_evidence_no_update
BEFORE UPDATE ON email_evidence
BEGIN
	SELECT RAISE(ABORT, 'email_evidence is append-only');
END;

CREATE TRIGGER IF NOT EXISTS email_evidence_no_delete
BEFORE DELETE ON email_evidence
BEGIN
	SELECT RAISE(ABORT, 'email_evidence is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_update
BEFORE UPDATE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete
BEFORE DELETE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit_log is append-only');
END;

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
