// Package dispatch submits votes from many agents against one proposal,
// concurrently and with bounded retry.
//
// Fan-out is capped so the harness does not overwhelm the node's inbound
// transaction endpoint. Each individual submission retries transient
// failures with exponential backoff up to a fixed attempt budget; terminal
// rejections are never retried. The dispatcher judges nothing about vote
// outcomes, that is the observer's and the oracle's job.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/pool"
)

// Config tunes the dispatcher.
type Config struct {
	// MaxParallel caps concurrent vote submissions. Zero means 16.
	MaxParallel int
	// MaxAttempts is the per-vote attempt budget including the first try.
	// Zero means 5.
	MaxAttempts int
	// InitialBackoff is the first retry delay. Zero means 100ms.
	InitialBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 16
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	return c
}

// Result reports the outcome of casting one plan.
type Result struct {
	Proposal gov.ProposalID
	// Acked holds the acknowledged votes; Epoch on each vote is the epoch
	// the node accepted it in.
	Acked []gov.Vote
	// Failed maps agent id to the final error for votes that exhausted
	// retries or were rejected.
	Failed map[string]error
}

// Ok reports whether every planned vote was acknowledged.
func (r *Result) Ok() bool { return len(r.Failed) == 0 }

// Err summarizes the failures, or nil when all votes were acknowledged.
func (r *Result) Err() error {
	if r.Ok() {
		return nil
	}
	agents := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	first := agents[0]
	return fmt.Errorf("vote dispatch failed for %d of %d agents, first: agent %s: %w",
		len(r.Failed), len(r.Failed)+len(r.Acked), first, r.Failed[first])
}

// Dispatcher casts votes through a node client.
type Dispatcher struct {
	client chain.Client
	agents *pool.Pool
	cfg    Config
	logger *slog.Logger
}

// New creates a dispatcher. The pool supplies each agent's credential; it
// is read-only and shared safely across all concurrent voting units.
func New(client chain.Client, agents *pool.Pool, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, agents: agents, cfg: cfg.withDefaults(), logger: logger}
}

// CastVotes submits every vote in the plan and waits for all of them to be
// acknowledged or to fail permanently.
//
// Votes are submitted in any relative order across agents; the ledger, not
// the harness, defines acceptance order. A hard failure for one agent does
// not cancel in-flight submissions for others: on-chain effects are not
// revocable, so partial evidence is collected rather than abandoned.
func (d *Dispatcher) CastVotes(ctx context.Context, plan Plan) (*Result, error) {
	if len(plan.Choices) == 0 {
		return nil, fmt.Errorf("dispatch: empty voting plan for proposal %s", plan.Proposal)
	}

	result := &Result{
		Proposal: plan.Proposal,
		Failed:   make(map[string]error),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.cfg.MaxParallel)
	)

	for _, agentID := range plan.Agents() {
		choice := plan.Choices[agentID]
		wg.Add(1)
		go func(agentID string, choice gov.Choice) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vote, err := d.castOne(ctx, agentID, plan.Proposal, choice)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[agentID] = err
				return
			}
			result.Acked = append(result.Acked, vote)
		}(agentID, choice)
	}
	wg.Wait()

	d.logger.Info("votes cast",
		"proposal", plan.Proposal,
		"acked", len(result.Acked),
		"failed", len(result.Failed),
	)
	return result, nil
}

// castOne submits a single vote with bounded exponential backoff on
// transient failures.
func (d *Dispatcher) castOne(ctx context.Context, agentID string, proposal gov.ProposalID, choice gov.Choice) (gov.Vote, error) {
	agent, err := d.agents.Agent(agentID)
	if err != nil {
		return gov.Vote{}, err
	}
	key := agent.Key

	vote := gov.Vote{Agent: agentID, Proposal: proposal, Choice: choice}

	attempt := 0
	op := func() error {
		attempt++
		epoch, err := d.client.SubmitVote(ctx, vote, key)
		if err != nil {
			if chain.IsTransient(err) {
				d.logger.Debug("vote submission retrying",
					"agent", agentID,
					"proposal", proposal,
					"attempt", attempt,
					"error", err,
				)
				return err
			}
			return backoff.Permanent(err)
		}
		vote.Epoch = epoch
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialBackoff
	bo.MaxElapsedTime = 0 // attempts, not wall time, bound the retry loop

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(d.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return gov.Vote{}, fmt.Errorf("agent %s vote on %s after %d attempts: %w", agentID, proposal, attempt, err)
	}
	return vote, nil
}
