// Package factory builds and submits well-formed governance action
// proposals.
//
// Building is local and cheap; submission is the only place sequence
// numbers are minted, and they must be strictly increasing across all
// proposals submitted within one run. Submission failures are terminal: a
// rejected proposal means the harness built a malformed payload, which no
// retry can repair.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/pool"
)

// Factory builds proposals and performs on-chain submission.
type Factory struct {
	client chain.Client
	logger *slog.Logger

	mu      sync.Mutex
	nonce   int64
	lastSeq int64
}

// New creates a factory backed by the given node client.
func New(client chain.Client, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{client: client, logger: logger}
}

// Build produces a syntactically valid, not-yet-submitted proposal of the
// requested kind, sponsored by the given agent.
func (f *Factory) Build(kind gov.ActionKind, sponsor pool.Agent) (*gov.Proposal, error) {
	f.mu.Lock()
	f.nonce++
	nonce := f.nonce
	f.mu.Unlock()

	payload, err := payloadFor(kind, nonce)
	if err != nil {
		return nil, err
	}

	anchorURL := fmt.Sprintf("http://www.%s-action-%d.com", kind, nonce)
	anchorHash := gov.AnchorDataHash(anchorURL)

	id, err := gov.ComputeProposalID(kind, sponsor.ID, anchorURL, anchorHash, payload, nonce)
	if err != nil {
		return nil, fmt.Errorf("build %s proposal: %w", kind, err)
	}

	return &gov.Proposal{
		ID:         id,
		Kind:       kind,
		Sponsor:    sponsor.ID,
		AnchorURL:  anchorURL,
		AnchorHash: anchorHash,
		Payload:    payload,
	}, nil
}

// Submit performs the on-chain submission and records the network-assigned
// sequence number on the proposal. Not retried: any failure here is fatal
// for the scenario.
func (f *Factory) Submit(ctx context.Context, p *gov.Proposal, sponsorKey string) (int64, error) {
	if p.Submitted() {
		return 0, fmt.Errorf("submit: proposal %s already has seq %d", p.ID, p.Seq)
	}

	receipt, err := f.client.SubmitProposal(ctx, p, sponsorKey)
	if err != nil {
		return 0, fmt.Errorf("submit %s proposal %s: %w", p.Kind, p.ID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if receipt.Seq <= f.lastSeq {
		return 0, fmt.Errorf("submit: node assigned seq %d after %d, submission order violated", receipt.Seq, f.lastSeq)
	}
	f.lastSeq = receipt.Seq
	p.Seq = receipt.Seq

	f.logger.Info("proposal submitted",
		"kind", p.Kind,
		"proposal", p.ID,
		"seq", p.Seq,
		"epoch", receipt.Epoch,
	)
	return p.Seq, nil
}

// payloadFor builds a minimal valid action body per kind. Values follow the
// shapes the node's submission endpoint accepts.
func payloadFor(kind gov.ActionKind, nonce int64) (map[string]any, error) {
	switch kind {
	case gov.KindHardFork:
		return map[string]any{
			"protocol_major": int64(10),
			"protocol_minor": int64(0),
		}, nil
	case gov.KindConstitutionUpdate:
		url := fmt.Sprintf("http://www.const-new-%d.com", nonce)
		return map[string]any{
			"constitution_url":  url,
			"constitution_hash": gov.AnchorDataHash(url),
		}, nil
	case gov.KindParamUpdate:
		return map[string]any{
			"max_block_size":   int64(65536),
			"min_fee_constant": int64(155381),
		}, nil
	case gov.KindCommitteeUpdate:
		return map[string]any{
			"add_member":       fmt.Sprintf("cc-new-%03d", nonce),
			"member_term":      int64(100),
			"quorum_threshold": "2/3",
		}, nil
	case gov.KindTreasuryWithdrawal:
		return map[string]any{
			"amount":        int64(10_000_000),
			"reward_target": fmt.Sprintf("stake-withdrawal-%d", nonce),
		}, nil
	case gov.KindNoConfidence:
		return map[string]any{}, nil
	case gov.KindInfo:
		return map[string]any{
			"note": fmt.Sprintf("informational action %d", nonce),
		}, nil
	default:
		return nil, fmt.Errorf("no payload template for action kind %q", kind)
	}
}
