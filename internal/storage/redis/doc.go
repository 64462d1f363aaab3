// Package redis stores proof registry snapshots in Redis. The latest snapshot
// lives under a single key and a bounded history list keeps older copies for
// manual recovery.
package redis
