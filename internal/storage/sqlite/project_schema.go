package sqlite

import "fmt"

// ProjectSchema returns the idempotent CREATE TABLE/INDEX statements for one
// project's prefixed tables: entities, entity_fts, relationships, sessions,
// messages, messages_fts, decisions, decisions_fts, embeddings, checkpoints,
// query_log, knowledge, runs, execution_logs. prefix must already include
// the trailing underscore (see TablePrefix).
func ProjectSchema(prefix string) []string {
	t := func(name string) string { return prefix + name }
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            name TEXT NOT NULL,
            qualified_name TEXT NOT NULL,
            content TEXT,
            summary TEXT,
            file_path TEXT,
            start_line INTEGER,
            end_line INTEGER,
            content_hash TEXT,
            metadata TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`, t("entities")),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_qname ON %s(qualified_name);`, t("entities"), t("entities")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_file_path ON %s(file_path);`, t("entities"), t("entities")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(type);`, t("entities"), t("entities")),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
            entity_id UNINDEXED, name, summary, content,
            tokenize = 'unicode61 remove_diacritics 2'
        );`, t("entity_fts")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            source_id TEXT NOT NULL,
            target_id TEXT NOT NULL,
            type TEXT NOT NULL,
            weight REAL NOT NULL DEFAULT 1.0,
            metadata TEXT,
            FOREIGN KEY(source_id) REFERENCES %s(id),
            FOREIGN KEY(target_id) REFERENCES %s(id)
        );`, t("relationships"), t("entities"), t("entities")),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_edge ON %s(source_id, target_id, type);`, t("relationships"), t("relationships")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source_id);`, t("relationships"), t("relationships")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_target ON %s(target_id);`, t("relationships"), t("relationships")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            name TEXT,
            status TEXT NOT NULL,
            summary TEXT,
            message_count INTEGER NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            archived_at TEXT
        );`, t("sessions")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            metadata TEXT,
            created_at TEXT NOT NULL,
            FOREIGN KEY(session_id) REFERENCES %s(id)
        );`, t("messages"), t("sessions")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s(session_id, created_at);`, t("messages"), t("messages")),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
            message_id UNINDEXED, content,
            tokenize = 'unicode61 remove_diacritics 2'
        );`, t("messages_fts")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            message_id TEXT,
            description TEXT NOT NULL,
            context TEXT,
            alternatives TEXT,
            related_entity_ids TEXT,
            status TEXT NOT NULL,
            superseded_by TEXT,
            created_at TEXT NOT NULL,
            FOREIGN KEY(session_id) REFERENCES %s(id)
        );`, t("decisions"), t("sessions")),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(
            decision_id UNINDEXED, description, context,
            tokenize = 'unicode61 remove_diacritics 2'
        );`, t("decisions_fts")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            entity_id TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            start_offset INTEGER NOT NULL,
            end_offset INTEGER NOT NULL,
            text TEXT NOT NULL,
            vector TEXT,
            model_id TEXT,
            created_at TEXT NOT NULL,
            PRIMARY KEY(entity_id, chunk_index),
            FOREIGN KEY(entity_id) REFERENCES %s(id)
        );`, t("embeddings"), t("entities")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            run_session_id TEXT NOT NULL,
            step_number INTEGER NOT NULL,
            state TEXT NOT NULL,
            description TEXT,
            created_at TEXT NOT NULL
        );`, t("checkpoints")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_run ON %s(run_session_id, step_number);`, t("checkpoints"), t("checkpoints")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            query TEXT NOT NULL,
            tokens_retrieved INTEGER,
            tokens_saved INTEGER,
            average_relevance REAL,
            strategies_used TEXT,
            latency_ms INTEGER,
            was_useful INTEGER,
            timestamp TEXT NOT NULL
        );`, t("query_log")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            source_type TEXT NOT NULL,
            path_or_url TEXT,
            title TEXT,
            text TEXT NOT NULL,
            trust_score REAL DEFAULT 0,
            pinned INTEGER DEFAULT 0,
            commit_sha TEXT,
            files TEXT,
            symbols TEXT,
            tags TEXT,
            created_at TEXT NOT NULL,
            verified_at TEXT
        );`, t("knowledge")),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            status TEXT NOT NULL,
            started_at TEXT NOT NULL,
            finished_at TEXT,
            metrics TEXT,
            logs_ref TEXT
        );`, t("runs")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            run_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            payload_ref TEXT,
            started_at TEXT NOT NULL,
            finished_at TEXT,
            exit_code INTEGER,
            FOREIGN KEY(run_id) REFERENCES %s(id)
        );`, t("execution_logs"), t("runs")),
	}
}
