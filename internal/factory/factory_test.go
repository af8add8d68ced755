package factory

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/pool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sponsorAgent(t *testing.T) pool.Agent {
	t.Helper()
	p, err := pool.New(pool.Config{SPOs: 1})
	require.NoError(t, err)
	agents, err := p.Allocate(gov.RoleSPO, 1)
	require.NoError(t, err)
	return agents[0]
}

func TestBuild_AllKinds(t *testing.T) {
	f := New(chain.NewFake(1), testLogger())
	sponsor := sponsorAgent(t)

	for _, kind := range gov.ActionKinds {
		t.Run(string(kind), func(t *testing.T) {
			p, err := f.Build(kind, sponsor)
			require.NoError(t, err)
			assert.Equal(t, kind, p.Kind)
			assert.Equal(t, sponsor.ID, p.Sponsor)
			assert.NotEmpty(t, p.ID)
			assert.NotEmpty(t, p.AnchorURL)
			assert.NotEmpty(t, p.AnchorHash)
			assert.False(t, p.Submitted())
		})
	}
}

func TestBuild_SiblingsDistinct(t *testing.T) {
	f := New(chain.NewFake(1), testLogger())
	sponsor := sponsorAgent(t)

	p1, err := f.Build(gov.KindConstitutionUpdate, sponsor)
	require.NoError(t, err)
	p2, err := f.Build(gov.KindConstitutionUpdate, sponsor)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p2.ID, "same kind and sponsor must still be distinct proposals")
}

func TestSubmit_StrictlyIncreasingSeq(t *testing.T) {
	fake := chain.NewFake(1)
	f := New(fake, testLogger())
	sponsor := sponsorAgent(t)
	ctx := context.Background()

	var lastSeq int64
	for i := 0; i < 3; i++ {
		p, err := f.Build(gov.KindParamUpdate, sponsor)
		require.NoError(t, err)
		seq, err := f.Submit(ctx, p, sponsor.Key)
		require.NoError(t, err)
		assert.Greater(t, seq, lastSeq, "sequence numbers must be strictly increasing")
		assert.Equal(t, seq, p.Seq)
		lastSeq = seq
	}
}

func TestSubmit_AlreadySubmittedRejected(t *testing.T) {
	f := New(chain.NewFake(1), testLogger())
	sponsor := sponsorAgent(t)
	ctx := context.Background()

	p, err := f.Build(gov.KindInfo, sponsor)
	require.NoError(t, err)
	_, err = f.Submit(ctx, p, sponsor.Key)
	require.NoError(t, err)

	_, err = f.Submit(ctx, p, sponsor.Key)
	assert.Error(t, err, "a submitted proposal is immutable")
}

func TestSubmit_RejectionIsNotRetried(t *testing.T) {
	fake := chain.NewFake(1)
	f := New(fake, testLogger())
	sponsor := sponsorAgent(t)
	ctx := context.Background()

	p, err := f.Build(gov.KindTreasuryWithdrawal, sponsor)
	require.NoError(t, err)
	fake.RejectProposal(p.ID, "malformed withdrawal")

	_, err = f.Submit(ctx, p, sponsor.Key)
	require.Error(t, err)
	assert.True(t, chain.IsRejected(err))
	assert.False(t, p.Submitted())
}

func TestSubmit_TransientFailureStillFatal(t *testing.T) {
	// The factory never retries: even a transient node failure fails the
	// submission, the scenario runner treats it as fatal.
	fake := chain.NewFake(1)
	fake.FailNextSubmissions(1)
	f := New(fake, testLogger())
	sponsor := sponsorAgent(t)

	p, err := f.Build(gov.KindNoConfidence, sponsor)
	require.NoError(t, err)
	_, err = f.Submit(context.Background(), p, sponsor.Key)
	assert.Error(t, err)
}
