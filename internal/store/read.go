package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSummary is one row of `enactor results` without a run argument.
type RunSummary struct {
	ID         string
	StartedAt  string
	FinishedAt string
	Total      int
	Verified   int
	Failed     int
}

// ResultRecord is a persisted scenario result, with observed and predicted
// winners as proposal labels.
type ResultRecord struct {
	Token      string
	RunID      string
	Name       string
	Kind       string
	Split      string
	State      string
	Observed   string
	Predicted  string
	StartEpoch uint64
	EndEpoch   uint64
	VotesCast  int
	ErrorCode  string
	ErrorMsg   string
}

// ListRuns returns all recorded runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), total, verified, failed
		FROM runs
		ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Verified, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run, or sql.ErrNoRows when the store
// is empty.
func (s *Store) LatestRun(ctx context.Context) (RunSummary, error) {
	var r RunSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), total, verified, failed
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1`).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Verified, &r.Failed)
	if err != nil {
		return RunSummary{}, err
	}
	return r, nil
}

// ResultsForRun returns the scenario results of one run in insertion order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, run_id, name, kind, split, state, observed, predicted,
		       start_epoch, end_epoch, votes_cast,
		       COALESCE(error_code, ''), COALESCE(error_msg, '')
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.Token, &r.RunID, &r.Name, &r.Kind, &r.Split, &r.State,
			&r.Observed, &r.Predicted, &r.StartEpoch, &r.EndEpoch, &r.VotesCast,
			&r.ErrorCode, &r.ErrorMsg); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}

// Snapshot returns the stored chain snapshot for a scenario token, or nil
// when none was captured.
func (s *Store) Snapshot(ctx context.Context, token string) ([]byte, error) {
	var snap []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM scenario_results WHERE token = ?`, token).Scan(&snap)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no result for token %s", token)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}
