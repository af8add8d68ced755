package gov

import (
	"fmt"
	"sort"
)

// Role is a voter class recognized by the ledger's ratification rules.
type Role string

const (
	// RoleSPO votes with delegated stake pool power.
	RoleSPO Role = "spo"
	// RoleCommittee is a constitutional committee member.
	RoleCommittee Role = "cc"
	// RoleDRep votes with delegated holder power.
	RoleDRep Role = "drep"
)

// Roles lists all voter classes in a fixed order.
var Roles = []Role{RoleSPO, RoleCommittee, RoleDRep}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSPO, RoleCommittee, RoleDRep:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown voter role %q", s)
}

// ActionKind identifies a type of governance action.
type ActionKind string

const (
	KindHardFork           ActionKind = "hard-fork"
	KindConstitutionUpdate ActionKind = "constitution"
	KindParamUpdate        ActionKind = "pparam-update"
	KindCommitteeUpdate    ActionKind = "committee-update"
	KindTreasuryWithdrawal ActionKind = "treasury-withdrawal"
	KindNoConfidence       ActionKind = "no-confidence"
	KindInfo               ActionKind = "info"
)

// ActionKinds lists all action kinds in a fixed order.
var ActionKinds = []ActionKind{
	KindHardFork,
	KindConstitutionUpdate,
	KindParamUpdate,
	KindCommitteeUpdate,
	KindTreasuryWithdrawal,
	KindNoConfidence,
	KindInfo,
}

// ParseActionKind converts a string to an ActionKind.
func ParseActionKind(s string) (ActionKind, error) {
	for _, k := range ActionKinds {
		if ActionKind(s) == k {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action kind %q", s)
}

// Choice is a single vote choice.
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

// ParseChoice converts a string to a Choice.
func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceYes, ChoiceNo, ChoiceAbstain:
		return Choice(s), nil
	}
	return "", fmt.Errorf("unknown vote choice %q", s)
}

// ProposalID is the content-addressed identity of a proposal.
// Computed from the proposal body, stable across runs given the same inputs.
type ProposalID string

// Proposal is a governance action.
//
// A proposal is built unsubmitted (Seq == 0) and becomes immutable once the
// chain assigns its submission sequence number. Seq is the tie-break key for
// ratification: when several proposals clear threshold in the same epoch,
// the lowest Seq wins.
type Proposal struct {
	ID         ProposalID
	Kind       ActionKind
	Sponsor    string // agent id of the sponsoring agent
	AnchorURL  string
	AnchorHash string
	Payload    map[string]any
	Seq        int64 // 0 until submitted
}

// Submitted reports whether the proposal has been accepted on chain.
func (p *Proposal) Submitted() bool { return p.Seq > 0 }

// Vote is a single cast vote. Epoch is the epoch the vote was acknowledged
// in; a later vote by the same agent on the same proposal replaces it.
type Vote struct {
	Agent    string
	Proposal ProposalID
	Choice   Choice
	Epoch    uint64
}

type voteKey struct {
	agent    string
	proposal ProposalID
}

// VoteSet holds the effective vote per (agent, proposal) pair.
//
// Add applies on-chain replacement semantics: a vote with an epoch greater
// than or equal to the stored one wins, an older vote is ignored. The
// effective content of the set therefore does not depend on insertion order
// as long as epochs order the replacements.
type VoteSet struct {
	votes map[voteKey]Vote
}

// NewVoteSet creates an empty vote set.
func NewVoteSet() *VoteSet {
	return &VoteSet{votes: make(map[voteKey]Vote)}
}

// Add records a vote, replacing any earlier vote by the same agent on the
// same proposal.
func (s *VoteSet) Add(v Vote) {
	k := voteKey{agent: v.Agent, proposal: v.Proposal}
	if prev, ok := s.votes[k]; ok && prev.Epoch > v.Epoch {
		return
	}
	s.votes[k] = v
}

// Get returns the effective vote for an (agent, proposal) pair.
func (s *VoteSet) Get(agent string, p ProposalID) (Vote, bool) {
	v, ok := s.votes[voteKey{agent: agent, proposal: p}]
	return v, ok
}

// ForProposal returns the effective votes on one proposal, sorted by agent
// id for deterministic iteration.
func (s *VoteSet) ForProposal(p ProposalID) []Vote {
	var out []Vote
	for k, v := range s.votes {
		if k.proposal == p {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// All returns every effective vote in the set, sorted by proposal then
// agent id.
func (s *VoteSet) All() []Vote {
	out := make([]Vote, 0, len(s.votes))
	for _, v := range s.votes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Proposal != out[j].Proposal {
			return out[i].Proposal < out[j].Proposal
		}
		return out[i].Agent < out[j].Agent
	})
	return out
}

// Len returns the number of effective votes.
func (s *VoteSet) Len() int { return len(s.votes) }

// EnactmentResult is the outcome of one scenario: which proposal (if any)
// was enacted and in which epoch.
//
// Produced independently by the chain observer (observed) and the enactment
// oracle (predicted). The two are compared by enacted proposal; epochs are
// recorded for timing but subject to slot-timing nondeterminism and not
// asserted.
type EnactmentResult struct {
	Enacted ProposalID `json:"enacted,omitempty"` // empty means none
	Epoch   uint64     `json:"epoch,omitempty"`
}

// None reports whether no proposal was enacted.
func (e EnactmentResult) None() bool { return e.Enacted == "" }

// SameOutcome reports whether two results name the same enacted proposal.
func (e EnactmentResult) SameOutcome(other EnactmentResult) bool {
	return e.Enacted == other.Enacted
}

func (e EnactmentResult) String() string {
	if e.None() {
		return "none"
	}
	return fmt.Sprintf("%s@epoch%d", e.Enacted, e.Epoch)
}
