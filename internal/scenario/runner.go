// Package scenario drives one governance load-test scenario end to end:
// build proposals, submit them, cast the planned votes, watch the chain for
// settlement, and compare the observed enactment against the oracle's
// independent prediction.
package scenario

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/dispatch"
	"github.com/roach88/enactor/internal/factory"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/observer"
	"github.com/roach88/enactor/internal/oracle"
	"github.com/roach88/enactor/internal/pool"
)

// State is a phase of the scenario lifecycle. Transitions are strictly
// forward; a failure in any phase jumps to StateFailed.
type State string

const (
	StateBuilding           State = "building"
	StateSubmitting         State = "submitting"
	StateVoting             State = "voting"
	StateAwaitingSettlement State = "awaiting-settlement"
	StateVerified           State = "verified"
	StateFailed             State = "failed"
)

// defaultProposals is the number of sibling proposals per scenario. Several
// competing submissions of the same kind exercise the lowest-sequence
// tie-break whenever more than one clears threshold.
const defaultProposals = 3

// defaultHorizon is how many epochs past submission the observer waits
// before concluding that nothing will be enacted.
const defaultHorizon = 3

// Spec describes one scenario to run.
type Spec struct {
	Name  string
	Kind  gov.ActionKind
	Split dispatch.Split

	// Proposals overrides the sibling proposal count (default 3).
	Proposals int

	// HorizonEpochs overrides the settlement horizon (default 3).
	HorizonEpochs uint64

	// MassAbstain makes every agent abstain instead of following the
	// split. The electorate's active weight collapses to zero and nothing
	// can ratify.
	MassAbstain bool

	// DisapproveAfterSettlement casts unanimous no votes against the
	// enacted proposal after settlement. The ledger refuses votes on
	// enacted actions, so the outcome must not change.
	DisapproveAfterSettlement bool
}

func (s Spec) proposals() int {
	if s.Proposals <= 0 {
		return defaultProposals
	}
	return s.Proposals
}

func (s Spec) horizon() uint64 {
	if s.HorizonEpochs == 0 {
		return defaultHorizon
	}
	return s.HorizonEpochs
}

// TraceEvent is one step of a scenario execution, recorded for golden
// comparison. Proposal identities appear as submission-order labels
// (prop-1, prop-2, ...) rather than content hashes, so traces are stable
// across runs.
type TraceEvent struct {
	Type   string `json:"type"`
	Label  string `json:"label,omitempty"`
	Seq    int64  `json:"seq,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the record of one scenario execution.
type Result struct {
	Token string
	Name  string
	Kind  gov.ActionKind
	Split dispatch.Split
	State State

	Proposals []gov.ProposalID
	Observed  gov.EnactmentResult
	Predicted gov.EnactmentResult

	StartEpoch uint64
	EndEpoch   uint64
	VotesCast  int

	Err      *Error
	Snapshot []byte
	Trace    []TraceEvent

	labels map[gov.ProposalID]string
}

// Verified reports whether the scenario ended with observation matching
// prediction.
func (r *Result) Verified() bool { return r.State == StateVerified }

// Label returns the submission-order label for a proposal ("none" for the
// empty id).
func (r *Result) Label(id gov.ProposalID) string {
	if id == "" {
		return "none"
	}
	if l, ok := r.labels[id]; ok {
		return l
	}
	return string(id)
}

func (r *Result) trace(eventType, label string, seq int64, detail string) {
	r.Trace = append(r.Trace, TraceEvent{Type: eventType, Label: label, Seq: seq, Detail: detail})
}

// Config tunes a Runner.
type Config struct {
	Rules    gov.RuleSet
	Dispatch dispatch.Config
	Observer observer.Config
	Tokens   TokenGenerator
}

func (c Config) withDefaults() Config {
	if c.Rules == nil {
		c.Rules = gov.DefaultRules()
	}
	if c.Tokens == nil {
		c.Tokens = UUIDv7Generator{}
	}
	return c
}

// Runner executes scenarios against one chain client and one agent pool.
//
// The pool is read-only during runs, so a single Runner's scenarios are
// independent failure domains: one scenario failing leaves the others'
// inputs untouched.
type Runner struct {
	agents     *pool.Pool
	factory    *factory.Factory
	dispatcher *dispatch.Dispatcher
	observer   *observer.Observer
	oracle     *oracle.Oracle
	rules      gov.RuleSet
	tokens     TokenGenerator
	logger     *slog.Logger
}

// New creates a runner.
func New(client chain.Client, agents *pool.Pool, cfg Config, logger *slog.Logger) *Runner {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		agents:     agents,
		factory:    factory.New(client, logger),
		dispatcher: dispatch.New(client, agents, cfg.Dispatch, logger),
		observer:   observer.New(client, cfg.Observer, logger),
		oracle:     oracle.New(cfg.Rules),
		rules:      cfg.Rules,
		tokens:     cfg.Tokens,
		logger:     logger,
	}
}

// Run executes one scenario and returns its result. The result is always
// non-nil; a failed scenario carries its Error and, where the failure left
// the chain in a disputed state, a gov-state snapshot.
func (r *Runner) Run(ctx context.Context, spec Spec) *Result {
	res := &Result{
		Token:  r.tokens.Generate(),
		Name:   spec.Name,
		Kind:   spec.Kind,
		Split:  spec.Split,
		State:  StateBuilding,
		labels: make(map[gov.ProposalID]string),
	}
	log := r.logger.With("scenario", res.Token, "name", spec.Name)

	rule, err := r.validate(spec)
	if err != nil {
		return r.fail(ctx, res, newError(ErrCodeConfigInvalid, res.Token, err.Error(), err), false)
	}

	proposals, serr := r.build(spec, res)
	if serr != nil {
		return r.fail(ctx, res, serr, false)
	}

	res.State = StateSubmitting
	if serr := r.submit(ctx, proposals, res); serr != nil {
		return r.fail(ctx, res, serr, false)
	}
	if epoch, err := r.observer.CurrentEpoch(ctx); err == nil {
		res.StartEpoch = epoch
	}

	res.State = StateVoting
	votes, serr := r.vote(ctx, spec, rule, proposals, res)
	if serr != nil {
		return r.fail(ctx, res, serr, false)
	}

	res.State = StateAwaitingSettlement
	horizon := res.StartEpoch + spec.horizon()

	type prediction struct {
		result gov.EnactmentResult
		err    error
	}
	predCh := make(chan prediction, 1)
	go func() {
		p, err := r.oracle.Predict(proposals, votes, r.agents)
		predCh <- prediction{result: p, err: err}
	}()

	observed, err := r.observer.AwaitSettlement(ctx, res.Proposals, horizon)
	if err != nil {
		if observer.IsTimeout(err) {
			return r.fail(ctx, res, newError(ErrCodeSettlementTimeout, res.Token, err.Error(), err), true)
		}
		// A terminal query failure ends the scenario with votes cast and no
		// settlement signal, same evidence state as a deadline expiry.
		return r.fail(ctx, res, newError(ErrCodeSettlementTimeout, res.Token,
			fmt.Sprintf("settlement observation failed: %v", err), err), true)
	}
	res.Observed = observed
	res.trace("settle", res.Label(observed.Enacted), int64(observed.Epoch), "")

	pred := <-predCh
	if pred.err != nil {
		return r.fail(ctx, res, newError(ErrCodeConfigInvalid, res.Token,
			fmt.Sprintf("prediction failed: %v", pred.err), pred.err), false)
	}
	res.Predicted = pred.result
	res.trace("predict", res.Label(pred.result.Enacted), 0, "")

	if epoch, err := r.observer.CurrentEpoch(ctx); err == nil {
		res.EndEpoch = epoch
	}

	if spec.DisapproveAfterSettlement && !observed.None() {
		r.disapprove(ctx, observed.Enacted, rule, res, log)
	}

	if !observed.SameOutcome(res.Predicted) {
		serr := newError(ErrCodeEnactmentMismatch, res.Token,
			fmt.Sprintf("observed %s, predicted %s", res.Label(observed.Enacted), res.Label(res.Predicted.Enacted)), nil)
		return r.fail(ctx, res, serr, true)
	}

	res.State = StateVerified
	res.trace("verify", "", 0, "outcome matches prediction")
	log.Info("scenario verified",
		"kind", spec.Kind,
		"split", spec.Split,
		"enacted", res.Label(observed.Enacted),
		"votes_cast", res.VotesCast,
		"epochs", res.EndEpoch-res.StartEpoch,
	)
	return res
}

// RunAll executes the specs in order and returns every result.
func (r *Runner) RunAll(ctx context.Context, specs []Spec) []*Result {
	results := make([]*Result, 0, len(specs))
	for _, spec := range specs {
		results = append(results, r.Run(ctx, spec))
	}
	return results
}

func (r *Runner) validate(spec Spec) (gov.ThresholdRule, error) {
	if _, err := gov.ParseActionKind(string(spec.Kind)); err != nil {
		return gov.ThresholdRule{}, err
	}
	if !spec.MassAbstain {
		if _, err := dispatch.ParseSplit(string(spec.Split)); err != nil {
			return gov.ThresholdRule{}, err
		}
	}
	rule, err := r.rules.For(spec.Kind)
	if err != nil {
		return gov.ThresholdRule{}, err
	}
	if err := r.agents.Validate(rule); err != nil {
		return gov.ThresholdRule{}, err
	}
	return rule, nil
}

func (r *Runner) build(spec Spec, res *Result) ([]*gov.Proposal, *Error) {
	sponsor, err := r.sponsor()
	if err != nil {
		return nil, newError(ErrCodeConfigInvalid, res.Token, err.Error(), err)
	}

	proposals := make([]*gov.Proposal, 0, spec.proposals())
	for i := 0; i < spec.proposals(); i++ {
		p, err := r.factory.Build(spec.Kind, sponsor)
		if err != nil {
			return nil, newError(ErrCodeConfigInvalid, res.Token, err.Error(), err)
		}
		proposals = append(proposals, p)
		res.labels[p.ID] = fmt.Sprintf("prop-%d", i+1)
		res.trace("build", res.labels[p.ID], 0, string(spec.Kind))
	}
	return proposals, nil
}

// sponsor picks the proposal sponsor: the first DRep, falling back to any
// agent when the pool has none.
func (r *Runner) sponsor() (pool.Agent, error) {
	if dreps := r.agents.Agents(gov.RoleDRep); len(dreps) > 0 {
		return dreps[0], nil
	}
	for _, role := range gov.Roles {
		if agents := r.agents.Agents(role); len(agents) > 0 {
			return agents[0], nil
		}
	}
	return pool.Agent{}, fmt.Errorf("scenario: no agent available to sponsor proposals")
}

func (r *Runner) submit(ctx context.Context, proposals []*gov.Proposal, res *Result) *Error {
	for _, p := range proposals {
		sponsor, err := r.agents.Agent(p.Sponsor)
		if err != nil {
			return newError(ErrCodeConfigInvalid, res.Token, err.Error(), err)
		}
		seq, err := r.factory.Submit(ctx, p, sponsor.Key)
		if err != nil {
			serr := newError(ErrCodeSubmissionRejected, res.Token, err.Error(), err)
			serr.Proposal = res.Label(p.ID)
			return serr
		}
		res.Proposals = append(res.Proposals, p.ID)
		res.trace("submit", res.Label(p.ID), seq, "")
	}
	return nil
}

// vote casts the split-derived plan on every sibling proposal and returns
// the acknowledged votes.
func (r *Runner) vote(ctx context.Context, spec Spec, rule gov.ThresholdRule, proposals []*gov.Proposal, res *Result) ([]gov.Vote, *Error) {
	var votes []gov.Vote
	for i, p := range proposals {
		plan := r.planFor(spec, rule, p.ID, i)
		result, err := r.dispatcher.CastVotes(ctx, plan)
		if err != nil {
			return nil, newError(ErrCodeConfigInvalid, res.Token, err.Error(), err)
		}
		votes = append(votes, result.Acked...)
		res.VotesCast += len(result.Acked)
		res.trace("vote", res.Label(p.ID), int64(len(result.Acked)), string(spec.Split))

		if !result.Ok() {
			code := ErrCodeSubmissionRejected
			for _, ferr := range result.Failed {
				if chain.IsTransient(ferr) {
					code = ErrCodeRetriesExhausted
					break
				}
			}
			serr := newError(code, res.Token, result.Err().Error(), result.Err())
			serr.Proposal = res.Label(p.ID)
			serr.Details = map[string]string{"failed_votes": fmt.Sprintf("%d", len(result.Failed))}
			return nil, serr
		}
	}
	return votes, nil
}

// planFor derives the voting plan for the proposal at submission index idx:
// the split applied per voter class the rule consults, relative to that
// class's threshold ratio, or universal abstention.
func (r *Runner) planFor(spec Spec, rule gov.ThresholdRule, id gov.ProposalID, idx int) dispatch.Plan {
	var plans []dispatch.Plan
	for _, role := range gov.Roles {
		ratio, required := rule.Classes[role]
		if !required && !spec.MassAbstain {
			continue
		}
		agents := r.agents.Agents(role)
		if spec.MassAbstain {
			plans = append(plans, dispatch.AbstainPlan(id, agents))
		} else {
			yes := dispatch.YesCount(len(agents), ratio, spec.Split, idx)
			plans = append(plans, dispatch.NewPlan(id, agents, yes))
		}
	}
	// Info actions consult no class; everyone still votes so the action
	// accumulates a tally before expiring without effect.
	if len(plans) == 0 {
		half := gov.Ratio{Num: 1, Den: 2}
		for _, role := range gov.Roles {
			agents := r.agents.Agents(role)
			yes := dispatch.YesCount(len(agents), half, spec.Split, idx)
			plans = append(plans, dispatch.NewPlan(id, agents, yes))
		}
	}
	merged := dispatch.Merge(plans...)
	merged.Proposal = id
	return merged
}

// disapprove casts unanimous no votes against an already-enacted proposal.
// The node rejects them, which is the point: the settled outcome must be
// immune to late votes.
func (r *Runner) disapprove(ctx context.Context, id gov.ProposalID, rule gov.ThresholdRule, res *Result, log *slog.Logger) {
	plan := dispatch.Plan{Proposal: id, Choices: make(map[string]gov.Choice)}
	for _, role := range gov.Roles {
		if !rule.Requires(role) {
			continue
		}
		for _, a := range r.agents.Agents(role) {
			plan.Choices[a.ID] = gov.ChoiceNo
		}
	}
	result, err := r.dispatcher.CastVotes(ctx, plan)
	if err != nil {
		log.Warn("late disapproval dispatch failed", "error", err)
		return
	}
	res.trace("disapprove", res.Label(id), int64(len(result.Failed)), "rejected by node")
	log.Info("late disapproval had no effect", "proposal", res.Label(id), "rejected", len(result.Failed))
}

// fail finalizes a failed result, capturing a gov-state snapshot when the
// failure concerns chain state (timeouts and mismatches).
func (r *Runner) fail(ctx context.Context, res *Result, serr *Error, snapshot bool) *Result {
	res.State = StateFailed
	res.Err = serr
	res.trace("fail", serr.Proposal, 0, string(serr.Code))
	if snapshot {
		if raw, err := r.observer.Snapshot(context.WithoutCancel(ctx)); err == nil {
			res.Snapshot = raw
		}
	}
	r.logger.Error("scenario failed",
		"scenario", res.Token,
		"name", res.Name,
		"code", serr.Code,
		"error", serr.Message,
	)
	return res
}

// DefaultSuite returns one spec per (action kind, split) combination, named
// "<kind>-<split>".
func DefaultSuite() []Spec {
	var specs []Spec
	for _, kind := range gov.ActionKinds {
		for _, split := range dispatch.Splits {
			specs = append(specs, Spec{
				Name:  fmt.Sprintf("%s-%s", kind, split),
				Kind:  kind,
				Split: split,
			})
		}
	}
	return specs
}
