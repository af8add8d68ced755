package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/pool"
)

func TestThresholdYes(t *testing.T) {
	tests := []struct {
		n    int
		r    gov.Ratio
		want int
	}{
		{n: 100, r: gov.Ratio{Num: 67, Den: 100}, want: 67},
		{n: 100, r: gov.Ratio{Num: 60, Den: 100}, want: 60},
		{n: 90, r: gov.Ratio{Num: 2, Den: 3}, want: 60},
		{n: 100, r: gov.Ratio{Num: 75, Den: 100}, want: 75},
		{n: 3, r: gov.Ratio{Num: 51, Den: 100}, want: 2},
		{n: 3, r: gov.Ratio{Num: 2, Den: 3}, want: 2},
		{n: 0, r: gov.Ratio{Num: 1, Den: 2}, want: 0},
	}
	for _, tt := range tests {
		got := ThresholdYes(tt.n, tt.r)
		assert.Equal(t, tt.want, got, "ThresholdYes(%d, %s)", tt.n, tt.r)
		if tt.n > 0 {
			assert.True(t, tt.r.MetBy(uint64(got), uint64(tt.n)), "threshold count must clear")
			if got > 0 {
				assert.False(t, tt.r.MetBy(uint64(got-1), uint64(tt.n)), "one fewer must not clear")
			}
		}
	}
}

func TestYesCount_PerProposalPosition(t *testing.T) {
	twoThirds := gov.Ratio{Num: 2, Den: 3}
	tests := []struct {
		name  string
		split Split
		idx   int
		want  int
	}{
		{name: "majority first lands above", split: SplitMajority, idx: 0, want: 62},
		{name: "majority sibling lands below", split: SplitMajority, idx: 1, want: 58},
		{name: "equal first on the boundary", split: SplitEqual, idx: 0, want: 60},
		{name: "equal second on the boundary", split: SplitEqual, idx: 1, want: 60},
		{name: "equal third below", split: SplitEqual, idx: 2, want: 58},
		{name: "insufficient always below", split: SplitInsufficient, idx: 0, want: 58},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YesCount(90, twoThirds, tt.split, tt.idx))
		})
	}
}

func TestYesCount_Clamped(t *testing.T) {
	half := gov.Ratio{Num: 1, Den: 2}
	assert.Equal(t, 3, YesCount(3, half, SplitMajority, 0), "clamped at n")
	assert.Equal(t, 0, YesCount(3, half, SplitInsufficient, 0), "clamped at 0")
	assert.Equal(t, 0, YesCount(0, half, SplitMajority, 0))
}

func TestParseSplit(t *testing.T) {
	for _, s := range Splits {
		parsed, err := ParseSplit(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseSplit("landslide")
	assert.Error(t, err)
}

func TestNewPlan_FillsFromFront(t *testing.T) {
	p, err := pool.New(pool.Config{DReps: 10})
	require.NoError(t, err)
	agents, err := p.Allocate(gov.RoleDRep, 10)
	require.NoError(t, err)

	plan := NewPlan("prop-1", agents, 5)
	require.Len(t, plan.Choices, 10)

	yes := 0
	for _, c := range plan.Choices {
		if c == gov.ChoiceYes {
			yes++
		}
	}
	assert.Equal(t, 5, yes)
	assert.Equal(t, gov.ChoiceYes, plan.Choices["drep-001"], "yes votes fill from the front")
	assert.Equal(t, gov.ChoiceNo, plan.Choices["drep-010"])
}

func TestNewPlan_Deterministic(t *testing.T) {
	p, err := pool.New(pool.Config{DReps: 20})
	require.NoError(t, err)
	agents, err := p.Allocate(gov.RoleDRep, 20)
	require.NoError(t, err)

	a := NewPlan("prop-1", agents, 12)
	b := NewPlan("prop-1", agents, 12)
	assert.Equal(t, a, b)
}

func TestAbstainPlan(t *testing.T) {
	p, err := pool.New(pool.Config{DReps: 4})
	require.NoError(t, err)
	agents, err := p.Allocate(gov.RoleDRep, 4)
	require.NoError(t, err)

	plan := AbstainPlan("prop-1", agents)
	for id, c := range plan.Choices {
		assert.Equal(t, gov.ChoiceAbstain, c, "agent %s", id)
	}
}

func TestMerge_ClassPlans(t *testing.T) {
	p, err := pool.New(pool.Config{SPOs: 3, DReps: 4})
	require.NoError(t, err)
	spos, err := p.Allocate(gov.RoleSPO, 3)
	require.NoError(t, err)
	dreps, err := p.Allocate(gov.RoleDRep, 4)
	require.NoError(t, err)

	merged := Merge(
		NewPlan("prop-1", spos, 3),
		NewPlan("prop-1", dreps, 0),
	)
	assert.Equal(t, gov.ProposalID("prop-1"), merged.Proposal)
	assert.Len(t, merged.Choices, 7)
}

func TestPlan_Agents_Sorted(t *testing.T) {
	plan := Plan{Choices: map[string]gov.Choice{
		"drep-003": gov.ChoiceYes,
		"drep-001": gov.ChoiceNo,
		"drep-002": gov.ChoiceYes,
	}}
	assert.Equal(t, []string{"drep-001", "drep-002", "drep-003"}, plan.Agents())
}
