// Package observer watches the network for epoch boundaries and proposal
// settlement.
//
// Polling is idempotent and free of on-chain side effects. The observer is
// the only component whose result can diverge from prediction through
// genuine network nondeterminism; it reports what it saw and leaves the
// judgement to the scenario runner.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/gov"
)

// TimeoutError reports that the settlement deadline expired before the
// network produced a settlement signal. Distinct from observing "none
// enacted" within the horizon, which is a valid outcome.
type TimeoutError struct {
	Proposals []gov.ProposalID
	LastEpoch uint64
	Waited    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("settlement deadline exceeded after %s at epoch %d (%d proposals unsettled)",
		e.Waited.Round(time.Millisecond), e.LastEpoch, len(e.Proposals))
}

// IsTimeout reports whether the error is a settlement timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Config tunes the observer.
type Config struct {
	// PollInterval bounds how often the node is queried. Zero means 500ms.
	PollInterval time.Duration
}

// Observer polls the node cluster.
type Observer struct {
	client chain.Client
	logger *slog.Logger
	poll   time.Duration
}

// New creates an observer.
func New(client chain.Client, cfg Config, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Observer{client: client, logger: logger, poll: poll}
}

// CurrentEpoch returns the ledger's current epoch.
func (o *Observer) CurrentEpoch(ctx context.Context) (uint64, error) {
	return o.client.CurrentEpoch(ctx)
}

// WaitForEpoch blocks until the ledger reaches the target epoch.
func (o *Observer) WaitForEpoch(ctx context.Context, target uint64) error {
	start := time.Now()
	for {
		epoch, err := o.client.CurrentEpoch(ctx)
		switch {
		case err == nil && epoch >= target:
			return nil
		case err != nil && !chain.IsTransient(err):
			return fmt.Errorf("epoch query: %w", err)
		case err != nil:
			o.logger.Debug("epoch query failed, polling continues", "error", err)
		}

		if err := o.sleep(ctx); err != nil {
			last, _ := o.client.CurrentEpoch(context.WithoutCancel(ctx))
			return &TimeoutError{LastEpoch: last, Waited: time.Since(start)}
		}
	}
}

// AwaitSettlement polls until one proposal of the set is enacted, or the
// epoch horizon passes with none enacted, or ctx expires.
//
// Returns the observed result in the first two cases; a passed horizon with
// no enactment is a valid "none" observation, not an error. A context
// expiry returns a TimeoutError: the network never signalled settlement,
// which must not be confused with a settled "none".
func (o *Observer) AwaitSettlement(ctx context.Context, proposals []gov.ProposalID, horizonEpoch uint64) (gov.EnactmentResult, error) {
	if len(proposals) == 0 {
		return gov.EnactmentResult{}, fmt.Errorf("observer: empty proposal set")
	}
	start := time.Now()
	var lastEpoch uint64

	for {
		for _, id := range proposals {
			info, err := o.client.ProposalStatus(ctx, id)
			if err != nil {
				if chain.IsTransient(err) {
					o.logger.Debug("status query failed, polling continues", "proposal", id, "error", err)
					continue
				}
				return gov.EnactmentResult{}, fmt.Errorf("status query for %s: %w", id, err)
			}
			if info.Status == chain.StatusEnacted {
				o.logger.Info("settlement observed",
					"proposal", id,
					"epoch", info.Epoch,
					"waited", time.Since(start).Round(time.Millisecond),
				)
				return gov.EnactmentResult{Enacted: id, Epoch: info.Epoch}, nil
			}
		}

		epoch, err := o.client.CurrentEpoch(ctx)
		if err == nil {
			lastEpoch = epoch
			if epoch > horizonEpoch {
				o.logger.Info("settlement horizon passed with no enactment",
					"epoch", epoch,
					"horizon", horizonEpoch,
				)
				return gov.EnactmentResult{}, nil
			}
		} else if !chain.IsTransient(err) {
			return gov.EnactmentResult{}, fmt.Errorf("epoch query: %w", err)
		}

		if err := o.sleep(ctx); err != nil {
			return gov.EnactmentResult{}, &TimeoutError{
				Proposals: proposals,
				LastEpoch: lastEpoch,
				Waited:    time.Since(start),
			}
		}
	}
}

// Snapshot fetches the node's raw governance state, kept as evidence for
// failed scenarios.
func (o *Observer) Snapshot(ctx context.Context) ([]byte, error) {
	return o.client.GovState(ctx)
}

// sleep waits one poll interval, returning an error when ctx expires.
func (o *Observer) sleep(ctx context.Context) error {
	timer := time.NewTimer(o.poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
