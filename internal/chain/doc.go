// Package chain is the boundary to the running node cluster.
//
// The harness treats the cluster as a black box with two surfaces: a
// submission endpoint accepting signed transactions (proposal creation,
// vote casting) and a query endpoint returning the current epoch and
// per-proposal status. Submission is at-least-once, queries are eventually
// consistent; callers own retry policy, this package only classifies
// failures as transient or rejections.
package chain
