// Package mysql stores proof registry snapshots in MySQL. Snapshots are
// appended to the proof_snapshots table and the newest row wins on restore;
// the schema is managed by the embedded migrations under deploy/migrations.
package mysql
