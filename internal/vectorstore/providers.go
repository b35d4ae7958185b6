package vectorstore

import (
	"database/sql"
	"os"
)

// NewFromEnv creates a VectorStore scoped to a project's table prefix, based
// on env configuration.
// CTXENGINE_VECTOR_PROVIDER: "sqlite"(default) | "pgvector" | "noop"
// PG DSN env: CTXENGINE_PGVECTOR_DSN
func NewFromEnv(db *sql.DB, prefix string) VectorStore {
	switch os.Getenv("CTXENGINE_VECTOR_PROVIDER") {
	case "pgvector":
		return PGVector{DSN: os.Getenv("CTXENGINE_PGVECTOR_DSN")}
	case "noop":
		return Noop{}
	default:
		if db == nil {
			return Noop{}
		}
		return NewSQLite(db, prefix)
	}
}
