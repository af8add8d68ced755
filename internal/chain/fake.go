package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/enactor/internal/gov"
)

// Fake is an in-memory stand-in for the node cluster, used by tests.
//
// The fake does not ratify on its own: tests script the outcome with
// ScriptEnactment so observed behavior is controlled independently of the
// oracle's prediction, and local runs install a tally via SetRatifier.
// Epochs advance manually via AdvanceEpoch or automatically every N polls
// via AdvanceEveryPolls.
type Fake struct {
	mu sync.Mutex

	epoch   uint64
	nextSeq int64

	proposals map[gov.ProposalID]*fakeProposal
	votes     *gov.VoteSet

	enactAt map[gov.ProposalID]uint64

	transientBudget int            // fail this many submissions with a transient error
	agentTransient  map[string]int // per-agent transient failures remaining
	rejectProposals map[gov.ProposalID]string
	statusErr       string
	advanceEvery    int
	pollsSinceEpoch int

	ratifier func(proposals []*gov.Proposal, votes []gov.Vote) gov.ProposalID
}

type fakeProposal struct {
	proposal gov.Proposal
	seq      int64
	submitAt uint64
}

// NewFake creates a fake node at the given starting epoch.
func NewFake(startEpoch uint64) *Fake {
	return &Fake{
		epoch:           startEpoch,
		proposals:       make(map[gov.ProposalID]*fakeProposal),
		votes:           gov.NewVoteSet(),
		enactAt:         make(map[gov.ProposalID]uint64),
		agentTransient:  make(map[string]int),
		rejectProposals: make(map[gov.ProposalID]string),
	}
}

// ScriptEnactment makes the proposal report enacted once the fake's epoch
// reaches the given epoch.
func (f *Fake) ScriptEnactment(id gov.ProposalID, epoch uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enactAt[id] = epoch
}

// FailNextSubmissions makes the next n submissions (proposals or votes)
// fail with a transient error, simulating mempool congestion.
func (f *Fake) FailNextSubmissions(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transientBudget = n
}

// FailAgentSubmissions makes the next n vote submissions by one agent fail
// transiently.
func (f *Fake) FailAgentSubmissions(agent string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentTransient[agent] = n
}

// RejectProposal makes submission of the given proposal fail terminally.
func (f *Fake) RejectProposal(id gov.ProposalID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectProposals[id] = reason
}

// FailStatusQueries makes every subsequent status query fail terminally,
// simulating a node that stops serving the query endpoint.
func (f *Fake) FailStatusQueries(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = reason
}

// AdvanceEpoch moves the fake ledger one epoch forward.
func (f *Fake) AdvanceEpoch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
}

// AdvanceEveryPolls advances the epoch automatically after every n query
// calls, so a polling observer makes progress without a driver goroutine.
func (f *Fake) AdvanceEveryPolls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanceEvery = n
}

// SetRatifier installs fn, consulted at each epoch boundary with the
// submitted proposals (Seq set) and all recorded votes. A non-empty result
// marks that proposal enacted at the new epoch. This turns the fake into a
// self-contained ledger simulation for local runs.
func (f *Fake) SetRatifier(fn func(proposals []*gov.Proposal, votes []gov.Vote) gov.ProposalID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratifier = fn
}

// Epoch returns the fake's current epoch.
func (f *Fake) Epoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}

// Votes returns the effective votes recorded on one proposal.
func (f *Fake) Votes(id gov.ProposalID) []gov.Vote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.votes.ForProposal(id)
}

// SubmitProposal implements Client.
func (f *Fake) SubmitProposal(_ context.Context, p *gov.Proposal, _ string) (SubmitReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transientBudget > 0 {
		f.transientBudget--
		return SubmitReceipt{}, NewTransient("mempool full", nil)
	}
	if reason, ok := f.rejectProposals[p.ID]; ok {
		return SubmitReceipt{}, NewRejected(reason, nil)
	}
	if _, ok := f.proposals[p.ID]; ok {
		return SubmitReceipt{}, NewRejected(fmt.Sprintf("proposal %s already submitted", p.ID), nil)
	}

	f.nextSeq++
	f.proposals[p.ID] = &fakeProposal{proposal: *p, seq: f.nextSeq, submitAt: f.epoch}
	return SubmitReceipt{Seq: f.nextSeq, Epoch: f.epoch}, nil
}

// SubmitVote implements Client. Voting on an already enacted proposal is
// rejected, as on chain.
func (f *Fake) SubmitVote(_ context.Context, v gov.Vote, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transientBudget > 0 {
		f.transientBudget--
		return 0, NewTransient("mempool full", nil)
	}
	if remaining := f.agentTransient[v.Agent]; remaining > 0 {
		f.agentTransient[v.Agent] = remaining - 1
		return 0, NewTransient("node busy", nil)
	}
	if _, ok := f.proposals[v.Proposal]; !ok {
		return 0, NewRejected(fmt.Sprintf("vote on unknown proposal %s", v.Proposal), nil)
	}
	if f.enactedLocked(v.Proposal) {
		return 0, NewRejected("proposal already enacted", nil)
	}

	v.Epoch = f.epoch
	f.votes.Add(v)
	return f.epoch, nil
}

// CurrentEpoch implements Client.
func (f *Fake) CurrentEpoch(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickLocked()
	return f.epoch, nil
}

// ProposalStatus implements Client.
func (f *Fake) ProposalStatus(_ context.Context, id gov.ProposalID) (StatusInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickLocked()

	if f.statusErr != "" {
		return StatusInfo{}, NewRejected(f.statusErr, nil)
	}
	if _, ok := f.proposals[id]; !ok {
		return StatusInfo{Status: StatusUnknown}, nil
	}
	if epoch, ok := f.enactAt[id]; ok && f.epoch >= epoch {
		return StatusInfo{Status: StatusEnacted, Epoch: epoch}, nil
	}
	return StatusInfo{Status: StatusActive}, nil
}

// GovState implements Client.
func (f *Fake) GovState(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte(fmt.Sprintf(`{"epoch":%d,"proposals":%d,"votes":%d}`,
		f.epoch, len(f.proposals), f.votes.Len())), nil
}

func (f *Fake) enactedLocked(id gov.ProposalID) bool {
	epoch, ok := f.enactAt[id]
	return ok && f.epoch >= epoch
}

func (f *Fake) tickLocked() {
	if f.advanceEvery <= 0 {
		return
	}
	f.pollsSinceEpoch++
	if f.pollsSinceEpoch >= f.advanceEvery {
		f.pollsSinceEpoch = 0
		f.epoch++
		f.ratifyLocked()
	}
}

func (f *Fake) ratifyLocked() {
	if f.ratifier == nil {
		return
	}
	proposals := make([]*gov.Proposal, 0, len(f.proposals))
	for _, fp := range f.proposals {
		if _, done := f.enactAt[fp.proposal.ID]; done {
			return // one enactment per fake lifetime
		}
		p := fp.proposal
		p.Seq = fp.seq
		proposals = append(proposals, &p)
	}
	if winner := f.ratifier(proposals, f.votes.All()); winner != "" {
		f.enactAt[winner] = f.epoch
	}
}
