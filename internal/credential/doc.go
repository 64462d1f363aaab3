// Package credential mints reward credentials for anchored proofs. The Issuer
// owns the retry policy; ledgers only know how to mint once.
package credential
