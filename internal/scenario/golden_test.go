package scenario

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/dispatch"
	"github.com/roach88/enactor/internal/gov"
)

// snapshotMap flattens a result for canonical JSON serialization. Proposal
// identities appear as submission-order labels, and the run token comes
// from a fixed generator, so the encoding is byte-stable across runs.
func snapshotMap(res *Result) map[string]any {
	trace := make([]any, len(res.Trace))
	for i, ev := range res.Trace {
		m := map[string]any{"type": ev.Type}
		if ev.Label != "" {
			m["label"] = ev.Label
		}
		if ev.Seq != 0 {
			m["seq"] = ev.Seq
		}
		if ev.Detail != "" {
			m["detail"] = ev.Detail
		}
		trace[i] = m
	}
	return map[string]any{
		"name":      res.Name,
		"token":     res.Token,
		"kind":      string(res.Kind),
		"split":     string(res.Split),
		"state":     string(res.State),
		"observed":  res.Label(res.Observed.Enacted),
		"predicted": res.Label(res.Predicted.Enacted),
		"trace":     trace,
	}
}

func TestRun_GoldenTrace(t *testing.T) {
	client := newAutoEnact(chain.NewFake(5), 3*paramVotes, 0)
	cfg := testConfig()
	cfg.Tokens = NewFixedGenerator("run-0001")
	r := New(client, testPool(t), cfg, testLogger())

	res := r.Run(context.Background(), Spec{
		Name:  "pparam-majority",
		Kind:  gov.KindParamUpdate,
		Split: dispatch.SplitMajority,
	})
	require.Nil(t, res.Err)

	encoded, err := gov.MarshalCanonical(snapshotMap(res))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "pparam-majority", encoded)
}
