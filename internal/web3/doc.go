// Package web3 houses EVM connectivity for the proof pipeline: chain
// definitions loaded from YAML, the backend contract that both live RPC
// clients and the simulated chain satisfy, and the submission receipts the
// consensus log and the credential ledger build on.
package web3
