package dispatch

import (
	"fmt"
	"sort"

	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/pool"
)

// Split names how yes votes are distributed across the sibling proposals of
// a scenario, relative to each voter class's threshold:
//
//   - majority: the first proposal lands comfortably above threshold, its
//     siblings clearly below. Expected outcome: first proposal enacted.
//   - equal: the first two proposals land exactly on the threshold
//     boundary, the third below. Both clear, so the submission-order
//     tie-break decides. Expected outcome: first proposal enacted.
//   - insufficient: every proposal lands clearly below threshold.
//     Expected outcome: none enacted.
type Split string

const (
	SplitMajority     Split = "majority"
	SplitEqual        Split = "equal"
	SplitInsufficient Split = "insufficient"
)

// Splits lists the scenario vote distributions in a fixed order.
var Splits = []Split{SplitMajority, SplitEqual, SplitInsufficient}

// ParseSplit converts a string to a Split.
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case SplitMajority, SplitEqual, SplitInsufficient:
		return Split(s), nil
	}
	return "", fmt.Errorf("unknown scenario split %q", s)
}

// margin is how far above or below the threshold boundary the majority and
// insufficient distributions land, in voters.
const margin = 2

// ThresholdYes returns the smallest yes count among n unit-weight voters
// that meets the ratio. Zero voters can never meet it.
func ThresholdYes(n int, r gov.Ratio) int {
	if n <= 0 {
		return 0
	}
	return int((int64(n)*r.Num + r.Den - 1) / r.Den)
}

// YesCount returns the yes count for the proposal at submission index idx
// (0-based) under a split, for a class of n unit-weight voters with
// threshold ratio r. Results are clamped to [0, n].
func YesCount(n int, r gov.Ratio, s Split, idx int) int {
	exact := ThresholdYes(n, r)
	var count int
	switch s {
	case SplitMajority:
		if idx == 0 {
			count = exact + margin
		} else {
			count = exact - margin
		}
	case SplitEqual:
		if idx <= 1 {
			count = exact
		} else {
			count = exact - margin
		}
	case SplitInsufficient:
		count = exact - margin
	}
	if count < 0 {
		return 0
	}
	if count > n {
		return n
	}
	return count
}

// Plan maps each participating agent to its choice on one proposal.
type Plan struct {
	Proposal gov.ProposalID
	Choices  map[string]gov.Choice
}

// Agents returns the participating agent ids in sorted order.
func (p Plan) Agents() []string {
	out := make([]string, 0, len(p.Choices))
	for id := range p.Choices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NewPlan builds a voting plan where the first yes agents of the slice vote
// yes and the rest vote no. Agents keep their slice order, so repeated runs
// with the same allocation produce the same plan.
func NewPlan(proposal gov.ProposalID, agents []pool.Agent, yes int) Plan {
	choices := make(map[string]gov.Choice, len(agents))
	for i, a := range agents {
		if i < yes {
			choices[a.ID] = gov.ChoiceYes
		} else {
			choices[a.ID] = gov.ChoiceNo
		}
	}
	return Plan{Proposal: proposal, Choices: choices}
}

// AbstainPlan builds a plan where every agent abstains. Used to verify that
// abstaining power is excluded from the threshold denominator.
func AbstainPlan(proposal gov.ProposalID, agents []pool.Agent) Plan {
	choices := make(map[string]gov.Choice, len(agents))
	for _, a := range agents {
		choices[a.ID] = gov.ChoiceAbstain
	}
	return Plan{Proposal: proposal, Choices: choices}
}

// Merge combines plans for the same proposal, e.g. one plan per voter
// class. Later plans win on agent collisions.
func Merge(plans ...Plan) Plan {
	merged := Plan{Choices: make(map[string]gov.Choice)}
	for _, p := range plans {
		merged.Proposal = p.Proposal
		for id, c := range p.Choices {
			merged.Choices[id] = c
		}
	}
	return merged
}
