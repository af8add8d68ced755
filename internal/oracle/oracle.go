// Package oracle computes the expected enactment outcome of a proposal set
// from the votes cast, independent of the live network.
//
// Predict is a pure function of proposals, votes and threshold rules: no
// network access, no clock, no internal state. It can run before, after or
// concurrently with the chain observer, and re-running it on the same
// inputs yields an identical result.
package oracle

import (
	"fmt"

	"github.com/roach88/enactor/internal/gov"
)

// Electorate supplies roles and voting power. Satisfied by *pool.Pool.
type Electorate interface {
	RoleOf(agentID string) (gov.Role, error)
	WeightOf(agentID string) (uint64, error)
	ClassWeight(role gov.Role) uint64
}

// Oracle predicts enactment under a fixed rule set.
type Oracle struct {
	rules gov.RuleSet
}

// New creates an oracle.
func New(rules gov.RuleSet) *Oracle {
	return &Oracle{rules: rules}
}

// Predict returns the expected enactment result for the proposal set.
//
// A proposal clears when every voter class its rule requires meets that
// class's minimum weighted-yes fraction. Among clearing proposals the one
// with the smallest submission sequence number wins; vote-count magnitude
// is irrelevant, thresholds are binary. With no clearing proposal the
// result is none.
//
// Only the effective vote per (agent, proposal) pair counts, so the
// prediction is invariant under reordering of the vote list. The predicted
// result carries no epoch: enactment timing belongs to the observer.
func (o *Oracle) Predict(proposals []*gov.Proposal, votes []gov.Vote, electorate Electorate) (gov.EnactmentResult, error) {
	set := gov.NewVoteSet()
	for _, v := range votes {
		set.Add(v)
	}

	var winner *gov.Proposal
	for _, p := range proposals {
		if !p.Submitted() {
			return gov.EnactmentResult{}, fmt.Errorf("oracle: proposal %s has no submission sequence number", p.ID)
		}
		clears, err := o.clears(p, set, electorate)
		if err != nil {
			return gov.EnactmentResult{}, err
		}
		if clears && (winner == nil || p.Seq < winner.Seq) {
			winner = p
		}
	}

	if winner == nil {
		return gov.EnactmentResult{}, nil
	}
	return gov.EnactmentResult{Enacted: winner.ID}, nil
}

// Tally computes the per-class weighted tallies for one proposal. Votes by
// classes the proposal's rule does not consult are ignored, as on chain.
func (o *Oracle) Tally(p *gov.Proposal, set *gov.VoteSet, electorate Electorate) (map[gov.Role]gov.Tally, error) {
	rule, err := o.rules.For(p.Kind)
	if err != nil {
		return nil, err
	}

	tallies := make(map[gov.Role]gov.Tally)
	for role := range rule.Classes {
		tallies[role] = gov.Tally{ClassWeight: electorate.ClassWeight(role)}
	}

	for _, v := range set.ForProposal(p.ID) {
		role, err := electorate.RoleOf(v.Agent)
		if err != nil {
			return nil, fmt.Errorf("oracle: vote by unknown agent: %w", err)
		}
		tally, required := tallies[role]
		if !required {
			continue
		}
		weight, err := electorate.WeightOf(v.Agent)
		if err != nil {
			return nil, err
		}
		switch v.Choice {
		case gov.ChoiceYes:
			tally.Yes += weight
		case gov.ChoiceNo:
			tally.No += weight
		case gov.ChoiceAbstain:
			tally.Abstain += weight
		}
		tallies[role] = tally
	}
	return tallies, nil
}

// clears reports whether the proposal meets every required class threshold.
func (o *Oracle) clears(p *gov.Proposal, set *gov.VoteSet, electorate Electorate) (bool, error) {
	rule, err := o.rules.For(p.Kind)
	if err != nil {
		return false, err
	}
	if !rule.Ratifiable {
		return false, nil
	}

	tallies, err := o.Tally(p, set, electorate)
	if err != nil {
		return false, err
	}
	for role, ratio := range rule.Classes {
		if !tallies[role].Clears(ratio) {
			return false, nil
		}
	}
	return true, nil
}
