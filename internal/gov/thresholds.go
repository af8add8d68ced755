package gov

import "fmt"

// Ratio is an exact threshold fraction. Comparisons are integer-only so a
// tally of 2/3 yes against a 2/3 threshold clears without rounding error.
type Ratio struct {
	Num int64
	Den int64
}

// MetBy reports whether yes/total >= the ratio. A zero total never meets
// the threshold: a class with no active voting power cannot approve.
func (r Ratio) MetBy(yes, total uint64) bool {
	if total == 0 {
		return false
	}
	return yes*uint64(r.Den) >= uint64(r.Num)*total
}

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// ThresholdRule defines, for one action kind, the minimum weighted-yes
// fraction required from each voter class that participates in its
// ratification. Classes absent from the map do not vote on the kind.
type ThresholdRule struct {
	Kind ActionKind
	// Ratifiable is false for kinds the ledger never enacts (info actions
	// expire without effect).
	Ratifiable bool
	Classes    map[Role]Ratio
}

// Requires reports whether the given class must approve this kind.
func (r ThresholdRule) Requires(role Role) bool {
	_, ok := r.Classes[role]
	return ok
}

// RuleSet maps action kinds to their threshold rules.
type RuleSet map[ActionKind]ThresholdRule

// For returns the rule for a kind.
func (rs RuleSet) For(kind ActionKind) (ThresholdRule, error) {
	r, ok := rs[kind]
	if !ok {
		return ThresholdRule{}, fmt.Errorf("no threshold rule for action kind %q", kind)
	}
	return r, nil
}

// DefaultRules returns the ratification thresholds of the target protocol.
//
// The fractions mirror the Conway genesis defaults: the committee threshold
// is 2/3 of authorized members, DRep thresholds vary per kind, SPOs vote
// only on hard forks, committee changes and no-confidence motions. The
// committee may not vote on motions of no confidence or on changes to its
// own composition.
func DefaultRules() RuleSet {
	return RuleSet{
		KindHardFork: {
			Kind:       KindHardFork,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleCommittee: {2, 3},
				RoleDRep:      {60, 100},
				RoleSPO:       {51, 100},
			},
		},
		KindConstitutionUpdate: {
			Kind:       KindConstitutionUpdate,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleCommittee: {2, 3},
				RoleDRep:      {75, 100},
			},
		},
		KindParamUpdate: {
			Kind:       KindParamUpdate,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleCommittee: {2, 3},
				RoleDRep:      {67, 100},
			},
		},
		KindTreasuryWithdrawal: {
			Kind:       KindTreasuryWithdrawal,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleCommittee: {2, 3},
				RoleDRep:      {67, 100},
			},
		},
		KindCommitteeUpdate: {
			Kind:       KindCommitteeUpdate,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleDRep: {67, 100},
				RoleSPO:  {51, 100},
			},
		},
		KindNoConfidence: {
			Kind:       KindNoConfidence,
			Ratifiable: true,
			Classes: map[Role]Ratio{
				RoleDRep: {67, 100},
				RoleSPO:  {51, 100},
			},
		},
		KindInfo: {
			Kind:       KindInfo,
			Ratifiable: false,
			Classes:    map[Role]Ratio{},
		},
	}
}

// Tally is the weighted vote count of one voter class on one proposal.
//
// ClassWeight is the total voting power of the class, including members who
// never voted. Abstaining power is removed from the denominator; power that
// voted neither yes nor abstain counts against the proposal.
type Tally struct {
	Yes         uint64
	No          uint64
	Abstain     uint64
	ClassWeight uint64
}

// ActiveWeight is the denominator of the yes fraction: class weight minus
// abstaining weight.
func (t Tally) ActiveWeight() uint64 {
	if t.Abstain >= t.ClassWeight {
		return 0
	}
	return t.ClassWeight - t.Abstain
}

// Clears reports whether the tally meets the ratio.
func (t Tally) Clears(r Ratio) bool {
	return r.MetBy(t.Yes, t.ActiveWeight())
}
