package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/dispatch"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/scenario"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func verifiedResult(token, name string) *scenario.Result {
	return &scenario.Result{
		Token:      token,
		Name:       name,
		Kind:       gov.KindParamUpdate,
		Split:      dispatch.SplitMajority,
		State:      scenario.StateVerified,
		Observed:   gov.EnactmentResult{Enacted: "prop-1", Epoch: 8},
		Predicted:  gov.EnactmentResult{Enacted: "prop-1"},
		StartEpoch: 5,
		EndEpoch:   8,
		VotesCast:  57,
	}
}

func TestOpen_AppliesSchemaAndPragmas(t *testing.T) {
	s := openTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestWriteAndReadResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginRun(ctx, "run-0001", started))
	require.NoError(t, s.WriteResult(ctx, "run-0001", verifiedResult("scn-a", "pparam-majority")))

	failed := verifiedResult("scn-b", "hard-fork-insufficient")
	failed.State = scenario.StateFailed
	failed.Observed = gov.EnactmentResult{}
	failed.Predicted = gov.EnactmentResult{Enacted: "prop-1"}
	failed.Err = &scenario.Error{
		Code:    scenario.ErrCodeEnactmentMismatch,
		Message: "observed none, predicted prop-1",
	}
	failed.Snapshot = []byte(`{"epoch":9}`)
	require.NoError(t, s.WriteResult(ctx, "run-0001", failed))
	require.NoError(t, s.FinishRun(ctx, "run-0001", started.Add(time.Minute)))

	results, err := s.ResultsForRun(ctx, "run-0001")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "pparam-majority", results[0].Name)
	assert.Equal(t, "verified", results[0].State)
	assert.Equal(t, "prop-1", results[0].Observed)
	assert.Equal(t, "prop-1", results[0].Predicted)
	assert.Equal(t, uint64(8), results[0].EndEpoch)
	assert.Equal(t, 57, results[0].VotesCast)
	assert.Empty(t, results[0].ErrorCode)

	assert.Equal(t, "failed", results[1].State)
	assert.Equal(t, "none", results[1].Observed)
	assert.Equal(t, string(scenario.ErrCodeEnactmentMismatch), results[1].ErrorCode)
	assert.Contains(t, results[1].ErrorMsg, "observed none")

	snap, err := s.Snapshot(ctx, "scn-b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"epoch":9}`, string(snap))
}

func TestFinishRun_RollsUpCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.BeginRun(ctx, "run-0002", now))
	require.NoError(t, s.WriteResult(ctx, "run-0002", verifiedResult("scn-1", "a")))
	require.NoError(t, s.WriteResult(ctx, "run-0002", verifiedResult("scn-2", "b")))
	broken := verifiedResult("scn-3", "c")
	broken.State = scenario.StateFailed
	require.NoError(t, s.WriteResult(ctx, "run-0002", broken))
	require.NoError(t, s.FinishRun(ctx, "run-0002", now.Add(time.Second)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].Total)
	assert.Equal(t, 2, runs[0].Verified)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotEmpty(t, runs[0].FinishedAt)
}

func TestListRuns_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginRun(ctx, "run-old", base))
	require.NoError(t, s.BeginRun(ctx, "run-new", base.Add(time.Hour)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-new", latest.ID)
}

func TestWrites_AreIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.BeginRun(ctx, "run-0003", now))
	require.NoError(t, s.BeginRun(ctx, "run-0003", now.Add(time.Hour)))

	res := verifiedResult("scn-x", "pparam-majority")
	require.NoError(t, s.WriteResult(ctx, "run-0003", res))
	res.State = scenario.StateFailed
	require.NoError(t, s.WriteResult(ctx, "run-0003", res))

	results, err := s.ResultsForRun(ctx, "run-0003")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "verified", results[0].State)
}

func TestSnapshot_MissingToken(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Snapshot(context.Background(), "absent")
	assert.Error(t, err)
}
