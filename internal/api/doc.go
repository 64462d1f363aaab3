// Package api exposes the ProofFlow REST surface: submitting questions for
// transparent reasoning, reading and verifying proofs, and explicitly
// re-driving proofs whose background work stalled.
package api
