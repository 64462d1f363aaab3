// Package consensus anchors proof steps on an external append-only log.
//
// Records are submitted strictly one after another for a single proof and
// each submission blocks until the log has assigned it a sequence number. The
// log channel is acquired once per process and shared by every proof.
package consensus
