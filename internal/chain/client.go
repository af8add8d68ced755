package chain

import (
	"context"

	"github.com/roach88/enactor/internal/gov"
)

// ProposalStatus is the lifecycle state of a proposal as reported by the
// node: submitted -> active -> (ratified) -> enacted, or expired.
type ProposalStatus string

const (
	StatusUnknown  ProposalStatus = "unknown"
	StatusActive   ProposalStatus = "active"
	StatusRatified ProposalStatus = "ratified"
	StatusEnacted  ProposalStatus = "enacted"
	StatusExpired  ProposalStatus = "expired"
)

// SubmitReceipt is the node's acknowledgement of a proposal submission.
// Seq is the network-assigned submission order, the ratification tie-break
// key.
type SubmitReceipt struct {
	Seq   int64
	Epoch uint64
}

// StatusInfo is the queried state of one proposal. Epoch is the enactment
// epoch once Status is StatusEnacted.
type StatusInfo struct {
	Status ProposalStatus
	Epoch  uint64
}

// Client talks to the node cluster. Implementations must be safe for
// concurrent use; the vote dispatcher fans out across goroutines.
type Client interface {
	// SubmitProposal submits a governance action signed with the sponsor's
	// credential and returns the network-assigned sequence number.
	SubmitProposal(ctx context.Context, p *gov.Proposal, key string) (SubmitReceipt, error)

	// SubmitVote submits one vote transaction signed with the agent's
	// credential and returns the epoch the vote was accepted in.
	SubmitVote(ctx context.Context, v gov.Vote, key string) (uint64, error)

	// CurrentEpoch returns the ledger's current epoch.
	CurrentEpoch(ctx context.Context) (uint64, error)

	// ProposalStatus queries the lifecycle state of a proposal. Querying is
	// idempotent and free of on-chain side effects.
	ProposalStatus(ctx context.Context, id gov.ProposalID) (StatusInfo, error)

	// GovState returns the node's raw governance state snapshot, kept as
	// evidence when a scenario fails.
	GovState(ctx context.Context) ([]byte, error)
}
