package registry

import (
	"database/sql"
	"time"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
	"github.com/core-tools/hsu-nginx-agent/pkg/logging"
	"github.com/core-tools/hsu-nginx-agent/pkg/nginx"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	type       TEXT NOT NULL,
	local_id   TEXT NOT NULL,
	root_uuid  TEXT NOT NULL DEFAULT '',
	first_seen TIMESTAMP NOT NULL,
	last_seen  TIMESTAMP NOT NULL,
	PRIMARY KEY (type, local_id)
)`

const recordSQL = `
INSERT INTO instances (type, local_id, root_uuid, first_seen, last_seen)
VALUES (:type, :local_id, :root_uuid, :seen, :seen)
ON CONFLICT (type, local_id)
DO UPDATE SET root_uuid = :root_uuid, last_seen = :seen`

// Registry persists instance definitions so the agent re-recognizes the same
// instance across its own restarts. Matching is by (type, local_id).
type Registry struct {
	db     *sqlx.DB
	logger logging.Logger
}

// Open opens (creating if needed) the registry database at path
func Open(path string, logger logging.Logger) (*Registry, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.NewIOError("failed to open registry database", err).WithContext("path", path)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to initialize registry schema", err)
	}

	return &Registry{
		db:     db,
		logger: logger,
	}, nil
}

// Record upserts a definition, stamping last_seen (and first_seen on insert)
func (r *Registry) Record(definition nginx.Definition) error {
	_, err := r.db.NamedExec(recordSQL, map[string]interface{}{
		"type":      definition.Type,
		"local_id":  definition.LocalID,
		"root_uuid": definition.RootUUID,
		"seen":      time.Now().UTC(),
	})
	if err != nil {
		return errors.NewInternalError("failed to record instance definition", err).
			WithContext("local_id", definition.LocalID)
	}

	r.logger.Debugf("Recorded instance definition, type: %s, local_id: %s", definition.Type, definition.LocalID)
	return nil
}

// Known reports whether a definition has been seen before
func (r *Registry) Known(definition nginx.Definition) (bool, error) {
	var count int
	err := r.db.Get(&count,
		"SELECT COUNT(*) FROM instances WHERE type = ? AND local_id = ?",
		definition.Type, definition.LocalID)
	if err != nil && err != sql.ErrNoRows {
		return false, errors.NewInternalError("failed to query registry", err).
			WithContext("local_id", definition.LocalID)
	}
	return count > 0, nil
}

// List returns all recorded definitions ordered by last_seen, newest first
func (r *Registry) List() ([]nginx.Definition, error) {
	var definitions []nginx.Definition
	err := r.db.Select(&definitions,
		"SELECT type, local_id, root_uuid FROM instances ORDER BY last_seen DESC")
	if err != nil {
		return nil, errors.NewInternalError("failed to list registry", err)
	}
	return definitions, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}
