package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/enactor/internal/scenario"
)

// BeginRun records the start of an enactor invocation. Writing the same
// run id twice is a no-op, so retried invocations stay idempotent.
func (s *Store) BeginRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, startedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteResult persists one scenario result under the given run. Observed
// and predicted winners are stored as the scenario's proposal labels
// ("prop-1", "none") rather than raw action identifiers.
func (s *Store) WriteResult(ctx context.Context, runID string, res *scenario.Result) error {
	var errCode, errMsg any
	if res.Err != nil {
		errCode = string(res.Err.Code)
		errMsg = res.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenario_results
			(token, run_id, name, kind, split, state, observed, predicted,
			 start_epoch, end_epoch, votes_cast, error_code, error_msg, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING`,
		res.Token, runID, res.Name, string(res.Kind), string(res.Split), string(res.State),
		res.Label(res.Observed.Enacted), res.Label(res.Predicted.Enacted),
		res.StartEpoch, res.EndEpoch, res.VotesCast,
		errCode, errMsg, res.Snapshot)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and rolls up its result counts.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			total = (SELECT COUNT(*) FROM scenario_results WHERE run_id = runs.id),
			verified = (SELECT COUNT(*) FROM scenario_results WHERE run_id = runs.id AND state = 'verified'),
			failed = (SELECT COUNT(*) FROM scenario_results WHERE run_id = runs.id AND state = 'failed')
		WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
