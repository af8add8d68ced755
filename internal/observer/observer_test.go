package observer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/gov"
)

func testObserver(fake *chain.Fake) *Observer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(fake, Config{PollInterval: time.Millisecond}, logger)
}

func submitProposal(t *testing.T, fake *chain.Fake, id gov.ProposalID) {
	t.Helper()
	_, err := fake.SubmitProposal(context.Background(), &gov.Proposal{ID: id}, "k")
	require.NoError(t, err)
}

func TestAwaitSettlement_ObservesEnactment(t *testing.T) {
	fake := chain.NewFake(1)
	submitProposal(t, fake, "p1")
	submitProposal(t, fake, "p2")
	fake.ScriptEnactment("p1", 3)
	fake.AdvanceEveryPolls(2)

	obs := testObserver(fake)
	result, err := obs.AwaitSettlement(context.Background(), []gov.ProposalID{"p1", "p2"}, 10)
	require.NoError(t, err)
	assert.Equal(t, gov.ProposalID("p1"), result.Enacted)
	assert.Equal(t, uint64(3), result.Epoch)
}

func TestAwaitSettlement_HorizonPassesWithNone(t *testing.T) {
	fake := chain.NewFake(1)
	submitProposal(t, fake, "p1")
	fake.AdvanceEveryPolls(1)

	obs := testObserver(fake)
	result, err := obs.AwaitSettlement(context.Background(), []gov.ProposalID{"p1"}, 4)
	require.NoError(t, err, "a passed horizon is a valid observation, not a failure")
	assert.True(t, result.None())
}

func TestAwaitSettlement_DeadlineIsTimeout(t *testing.T) {
	fake := chain.NewFake(1)
	submitProposal(t, fake, "p1")
	// Epoch never advances, horizon never passes, nothing enacts.

	obs := testObserver(fake)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_, err := obs.AwaitSettlement(ctx, []gov.ProposalID{"p1"}, 100)
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "deadline expiry must surface as TimeoutError, never as a settled none")
}

func TestAwaitSettlement_EmptySetRejected(t *testing.T) {
	obs := testObserver(chain.NewFake(1))
	_, err := obs.AwaitSettlement(context.Background(), nil, 10)
	assert.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestAwaitSettlement_UnknownProposalTolerated(t *testing.T) {
	// An unknown proposal reports StatusUnknown; polling continues until a
	// known proposal settles.
	fake := chain.NewFake(1)
	submitProposal(t, fake, "p1")
	fake.ScriptEnactment("p1", 1)

	obs := testObserver(fake)
	result, err := obs.AwaitSettlement(context.Background(), []gov.ProposalID{"unknown", "p1"}, 10)
	require.NoError(t, err)
	assert.Equal(t, gov.ProposalID("p1"), result.Enacted)
}

func TestWaitForEpoch(t *testing.T) {
	fake := chain.NewFake(2)
	fake.AdvanceEveryPolls(1)

	obs := testObserver(fake)
	require.NoError(t, obs.WaitForEpoch(context.Background(), 5))

	epoch, err := obs.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, epoch, uint64(5))
}

func TestWaitForEpoch_Timeout(t *testing.T) {
	fake := chain.NewFake(2)
	obs := testObserver(fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := obs.WaitForEpoch(ctx, 10)
	assert.True(t, IsTimeout(err))
}

func TestSnapshot(t *testing.T) {
	fake := chain.NewFake(7)
	obs := testObserver(fake)

	raw, err := obs.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"epoch":7`)
}
