package gov

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for algorithm migration without colliding with old ids.
const (
	domainProposal = "enactor/proposal/v1"
	domainVote     = "enactor/vote/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator prevents ambiguity at the domain/data boundary.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeProposalID derives the content-addressed id of a proposal body.
//
// The id covers kind, sponsor, anchor and payload but not the submission
// sequence number: identity is "what is proposed", the chain decides when.
// The nonce keeps otherwise-identical sibling proposals in one scenario
// distinct.
func ComputeProposalID(kind ActionKind, sponsor, anchorURL, anchorHash string, payload map[string]any, nonce int64) (ProposalID, error) {
	body := map[string]any{
		"kind":        kind,
		"sponsor":     sponsor,
		"anchor_url":  anchorURL,
		"anchor_hash": anchorHash,
		"payload":     payload,
		"nonce":       nonce,
	}
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("proposal id: %w", err)
	}
	return ProposalID(hashWithDomain(domainProposal, canonical)), nil
}

// AnchorDataHash derives the data hash recorded alongside an anchor URL.
func AnchorDataHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ComputeVoteID derives a stable id for a vote transaction, used to name
// submissions when talking to the node.
func ComputeVoteID(v Vote) (string, error) {
	body := map[string]any{
		"agent":    v.Agent,
		"proposal": v.Proposal,
		"choice":   v.Choice,
		"epoch":    v.Epoch,
	}
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("vote id: %w", err)
	}
	return hashWithDomain(domainVote, canonical), nil
}
