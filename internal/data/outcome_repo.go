package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
)

// OutcomeRepo persists terminal range outcomes to Postgres for post-mortem
// inspection. Journal writes are best-effort: the execution core logs and
// continues on failure.
type OutcomeRepo struct {
	db *sql.DB
}

// NewOutcomeRepo creates a new OutcomeRepo with the given database handle.
func NewOutcomeRepo(db *sql.DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

// EnsureSchema creates the journal table when it does not exist. The agent
// owns its journal table; there is no shared migration pipeline on the
// worker-node side.
func (r *OutcomeRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS range_outcomes (
	id           UUID PRIMARY KEY,
	job_id       TEXT NOT NULL,
	range_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	output_path  TEXT,
	cpu_seconds  DOUBLE PRECISION,
	wall_seconds DOUBLE PRECISION,
	raw_message  TEXT,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, range_id, status)
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure journal schema: %w", agenterrors.MapDBError(err))
	}
	return nil
}

// Record journals one outcome message. Re-recording the same terminal outcome
// is a no-op so duplicate worker notifications stay harmless here.
func (r *OutcomeRepo) Record(ctx context.Context, jobID string, msg model.OutcomeMessage) error {
	const query = `
INSERT INTO range_outcomes (id, job_id, range_id, status, output_path, cpu_seconds, wall_seconds, raw_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_id, range_id, status) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), jobID, msg.ID, string(msg.Status),
		nullString(msg.Output), msg.CPU, msg.Wall, nullString(msg.Raw))
	if err != nil {
		return fmt.Errorf("journal outcome %s/%s: %w", jobID, msg.ID, agenterrors.MapDBError(err))
	}
	return nil
}

// CountByStatus returns the number of journaled outcomes per status for a job.
func (r *OutcomeRepo) CountByStatus(ctx context.Context, jobID string) (map[model.RangeStatus]int, error) {
	const query = `SELECT status, count(*) FROM range_outcomes WHERE job_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("count outcomes for %s: %w", jobID, agenterrors.MapDBError(err))
	}
	defer rows.Close()

	counts := make(map[model.RangeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[model.RangeStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
