package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "identities: derived principals with karma accumulator",
		SQL: `
CREATE TABLE identities (
    id          INTEGER PRIMARY KEY,
    did         TEXT NOT NULL UNIQUE,
    public_key  TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    karma       REAL NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'suspended'))
);

CREATE INDEX idx_identities_karma      ON identities(karma DESC);
CREATE INDEX idx_identities_created_at ON identities(created_at);
`,
	},
	{
		Version:     2,
		Description: "pulses: hash-linked append-only activity log",
		SQL: `
CREATE TABLE pulses (
    id          INTEGER PRIMARY KEY,
    pulse_id    TEXT NOT NULL UNIQUE,
    origin_did  TEXT NOT NULL,
    agent_id    TEXT,
    created_at  INTEGER NOT NULL,
    action      TEXT NOT NULL,
    impact      REAL NOT NULL,
    context     TEXT,
    deps        TEXT,
    hash        TEXT NOT NULL,
    prev_hash   TEXT,

    FOREIGN KEY (origin_did) REFERENCES identities(did)
);

CREATE INDEX idx_pulses_origin_time ON pulses(origin_did, created_at DESC);
CREATE INDEX idx_pulses_created_at  ON pulses(created_at DESC);
CREATE INDEX idx_pulses_action      ON pulses(action);
`,
	},
	{
		Version:     3,
		Description: "policy_keys: scoped capability grants",
		SQL: `
CREATE TABLE policy_keys (
    id          INTEGER PRIMARY KEY,
    key_id      TEXT NOT NULL UNIQUE,
    did         TEXT NOT NULL,
    subject     TEXT NOT NULL,
    verb        TEXT NOT NULL,
    object_ref  TEXT NOT NULL,
    constraints TEXT,
    created_at  INTEGER NOT NULL,
    expires_at  INTEGER,
    revoked     INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY (did) REFERENCES identities(did)
);

CREATE INDEX idx_keys_did ON policy_keys(did);
`,
	},
	{
		Version:     4,
		Description: "agents: spawned workers with checkpoints",
		SQL: `
CREATE TABLE agents (
    id          INTEGER PRIMARY KEY,
    agent_id    TEXT NOT NULL UNIQUE,
    did         TEXT NOT NULL,
    name        TEXT NOT NULL,
    agent_type  TEXT NOT NULL DEFAULT 'worker',
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'terminated')),
    config      TEXT,
    karma       REAL NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,

    FOREIGN KEY (did) REFERENCES identities(did)
);

CREATE INDEX idx_agents_did    ON agents(did);
CREATE INDEX idx_agents_status ON agents(status);

CREATE TABLE agent_checkpoints (
    id            INTEGER PRIMARY KEY,
    checkpoint_id TEXT NOT NULL UNIQUE,
    agent_id      TEXT NOT NULL,
    state_hash    TEXT NOT NULL,
    created_at    INTEGER NOT NULL,

    FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
);

CREATE INDEX idx_checkpoints_agent ON agent_checkpoints(agent_id);
`,
	},
	{
		Version:     5,
		Description: "proposals: governance with karma-weighted votes",
		SQL: `
CREATE TABLE proposals (
    id            INTEGER PRIMARY KEY,
    proposal_id   TEXT NOT NULL UNIQUE,
    did           TEXT NOT NULL,
    title         TEXT NOT NULL,
    description   TEXT,
    proposal_type TEXT NOT NULL DEFAULT 'general',
    status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed')),
    votes_for     REAL NOT NULL DEFAULT 0,
    votes_against REAL NOT NULL DEFAULT 0,
    result        TEXT,
    created_at    INTEGER NOT NULL,
    deadline      INTEGER NOT NULL,

    FOREIGN KEY (did) REFERENCES identities(did)
);

CREATE INDEX idx_proposals_status     ON proposals(status);
CREATE INDEX idx_proposals_created_at ON proposals(created_at DESC);

CREATE TABLE proposal_votes (
    id          INTEGER PRIMARY KEY,
    proposal_id TEXT NOT NULL,
    did         TEXT NOT NULL,
    choice      TEXT NOT NULL CHECK (choice IN ('for', 'against')),
    weight      REAL NOT NULL,
    created_at  INTEGER NOT NULL,

    UNIQUE (proposal_id, did),
    FOREIGN KEY (proposal_id) REFERENCES proposals(proposal_id)
);
`,
	},
	{
		Version:     6,
		Description: "stakes: locked karma commitments",
		SQL: `
CREATE TABLE stakes (
    id            INTEGER PRIMARY KEY,
    stake_id      TEXT NOT NULL UNIQUE,
    did           TEXT NOT NULL,
    amount        REAL NOT NULL,
    duration_days INTEGER NOT NULL,
    staked_at     INTEGER NOT NULL,
    unlocks_at    INTEGER NOT NULL,
    unlocked_at   INTEGER,
    status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'unlocked')),

    FOREIGN KEY (did) REFERENCES identities(did)
);

CREATE INDEX idx_stakes_did    ON stakes(did);
CREATE INDEX idx_stakes_status ON stakes(status);
`,
	},
	{
		Version:     7,
		Description: "social: channels, messages, feed posts, reactions",
		SQL: `
CREATE TABLE channels (
    id          INTEGER PRIMARY KEY,
    channel_id  TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    description TEXT,
    is_private  INTEGER NOT NULL DEFAULT 0,
    created_by  TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_channels_created_by ON channels(created_by);

CREATE TABLE channel_members (
    id         INTEGER PRIMARY KEY,
    channel_id TEXT NOT NULL,
    did        TEXT NOT NULL,
    joined_at  INTEGER NOT NULL,

    UNIQUE (channel_id, did),
    FOREIGN KEY (channel_id) REFERENCES channels(channel_id)
);

CREATE TABLE messages (
    id         INTEGER PRIMARY KEY,
    message_id TEXT NOT NULL UNIQUE,
    channel_id TEXT NOT NULL,
    did        TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    FOREIGN KEY (channel_id) REFERENCES channels(channel_id)
);

CREATE INDEX idx_messages_channel ON messages(channel_id, created_at);

CREATE TABLE feed_posts (
    id         INTEGER PRIMARY KEY,
    post_id    TEXT NOT NULL UNIQUE,
    did        TEXT NOT NULL,
    content    TEXT NOT NULL,
    tags       TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_posts_created_at ON feed_posts(created_at DESC);

CREATE TABLE reactions (
    id         INTEGER PRIMARY KEY,
    post_id    TEXT NOT NULL,
    did        TEXT NOT NULL,
    kind       TEXT NOT NULL,
    created_at INTEGER NOT NULL,

    UNIQUE (post_id, did, kind),
    FOREIGN KEY (post_id) REFERENCES feed_posts(post_id)
);
`,
	},
	{
		Version:     8,
		Description: "session: persisted current identity pointer",
		SQL: `
CREATE TABLE session (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    current_did TEXT
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	// An existing store written by a newer binary is a schema conflict,
	// not something to migrate over.
	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if latest := migrations[len(migrations)-1].Version; current > latest {
		return fmt.Errorf("schema conflict: store at version %d, binary supports %d", current, latest)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
