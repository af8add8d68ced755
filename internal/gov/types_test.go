package gov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionKind_RoundTrip(t *testing.T) {
	for _, k := range ActionKinds {
		parsed, err := ParseActionKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseActionKind_Unknown(t *testing.T) {
	_, err := ParseActionKind("coup")
	assert.Error(t, err)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		in      string
		want    Choice
		wantErr bool
	}{
		{in: "yes", want: ChoiceYes},
		{in: "no", want: ChoiceNo},
		{in: "abstain", want: ChoiceAbstain},
		{in: "maybe", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseChoice(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		parsed, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseRole("observer")
	assert.Error(t, err)
}

func TestVoteSet_LastWriteWins(t *testing.T) {
	s := NewVoteSet()
	s.Add(Vote{Agent: "drep-001", Proposal: "p1", Choice: ChoiceNo, Epoch: 3})
	s.Add(Vote{Agent: "drep-001", Proposal: "p1", Choice: ChoiceYes, Epoch: 4})

	v, ok := s.Get("drep-001", "p1")
	require.True(t, ok)
	assert.Equal(t, ChoiceYes, v.Choice, "later epoch replaces earlier vote")
	assert.Equal(t, 1, s.Len())
}

func TestVoteSet_OlderVoteIgnored(t *testing.T) {
	s := NewVoteSet()
	s.Add(Vote{Agent: "drep-001", Proposal: "p1", Choice: ChoiceYes, Epoch: 5})
	s.Add(Vote{Agent: "drep-001", Proposal: "p1", Choice: ChoiceNo, Epoch: 4})

	v, ok := s.Get("drep-001", "p1")
	require.True(t, ok)
	assert.Equal(t, ChoiceYes, v.Choice, "stale vote must not replace a newer one")
}

func TestVoteSet_SameEpochReplaces(t *testing.T) {
	// A re-vote within the same epoch still replaces the prior vote,
	// mirroring the ledger's behavior for two vote txs in one epoch.
	s := NewVoteSet()
	s.Add(Vote{Agent: "cc-01", Proposal: "p2", Choice: ChoiceYes, Epoch: 7})
	s.Add(Vote{Agent: "cc-01", Proposal: "p2", Choice: ChoiceAbstain, Epoch: 7})

	v, ok := s.Get("cc-01", "p2")
	require.True(t, ok)
	assert.Equal(t, ChoiceAbstain, v.Choice)
}

func TestVoteSet_ForProposal_SortedAndScoped(t *testing.T) {
	s := NewVoteSet()
	s.Add(Vote{Agent: "drep-002", Proposal: "p1", Choice: ChoiceYes})
	s.Add(Vote{Agent: "drep-001", Proposal: "p1", Choice: ChoiceNo})
	s.Add(Vote{Agent: "drep-001", Proposal: "p2", Choice: ChoiceYes})

	votes := s.ForProposal("p1")
	require.Len(t, votes, 2)
	assert.Equal(t, "drep-001", votes[0].Agent)
	assert.Equal(t, "drep-002", votes[1].Agent)
}

func TestEnactmentResult_None(t *testing.T) {
	assert.True(t, EnactmentResult{}.None())
	assert.False(t, EnactmentResult{Enacted: "p1"}.None())
	assert.Equal(t, "none", EnactmentResult{}.String())
}

func TestEnactmentResult_SameOutcome_IgnoresEpoch(t *testing.T) {
	a := EnactmentResult{Enacted: "p1", Epoch: 10}
	b := EnactmentResult{Enacted: "p1", Epoch: 11}
	assert.True(t, a.SameOutcome(b), "epoch drift is within tolerance, outcome is the proposal")

	c := EnactmentResult{Enacted: "p2", Epoch: 10}
	assert.False(t, a.SameOutcome(c))
}
