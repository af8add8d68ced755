// Package gov defines the governance domain model shared by every component
// of the harness: action kinds, voter roles, proposals, votes, threshold
// rules and enactment results.
//
// Values in this package are plain data. Proposals become immutable once
// they carry a submission sequence number; a VoteSet applies on-chain
// last-write-wins semantics per (agent, proposal) pair. All weighted
// threshold arithmetic is exact integer math, no floats.
package gov
