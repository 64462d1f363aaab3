// Package lifecycle drives proofs from registration to anchoring and
// credential issuance.
//
// Submit registers a proof in PUBLISHING state and enqueues its id; the
// Processor consumes ids from the queue and performs the slow external calls.
// Failures leave the proof where it stopped. Nothing re-drives a stuck proof
// automatically, including a process restart; Redrive is the explicit hook
// for an external retry.
package lifecycle
