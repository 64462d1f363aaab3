package store

import (
	"strings"

	"ProofFlow-Chain/internal/proof"
)

// ListOptions controls how proofs are selected by ListRecent.
type ListOptions struct {
	Limit             int
	RequesterIdentity string
	Statuses          []proof.Status
}

const (
	// DefaultListLimit is used when no positive limit is requested.
	DefaultListLimit = 20
	// MaxListLimit caps a single page.
	MaxListLimit = 100
)

func (opts *ListOptions) applyDefaults() {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	opts.RequesterIdentity = strings.TrimSpace(opts.RequesterIdentity)
	if opts.Statuses != nil {
		opts.Statuses = normalizeStatuses(opts.Statuses)
	}
}

// ListOption mutates ListOptions.
type ListOption func(*ListOptions)

// WithLimit limits the number of proofs returned.
func WithLimit(limit int) ListOption {
	return func(opts *ListOptions) {
		opts.Limit = limit
	}
}

// WithRequester keeps proofs whose requester identity matches, ignoring case.
func WithRequester(identity string) ListOption {
	return func(opts *ListOptions) {
		opts.RequesterIdentity = identity
	}
}

// WithStatuses filters proofs by the provided statuses.
func WithStatuses(statuses ...proof.Status) ListOption {
	return func(opts *ListOptions) {
		opts.Statuses = append(opts.Statuses[:0], statuses...)
	}
}

// BuildListOptions applies option functions on top of defaults.
func BuildListOptions(opts []ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func (opts ListOptions) matches(p *proof.Proof) bool {
	if opts.RequesterIdentity != "" && !strings.EqualFold(p.RequesterIdentity, opts.RequesterIdentity) {
		return false
	}
	if len(opts.Statuses) == 0 {
		return true
	}
	for _, status := range opts.Statuses {
		if p.Status == status {
			return true
		}
	}
	return false
}

func normalizeStatuses(input []proof.Status) []proof.Status {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[proof.Status]struct{}, len(input))
	result := make([]proof.Status, 0, len(input))
	for _, status := range input {
		status = proof.Status(strings.ToUpper(strings.TrimSpace(string(status))))
		if !proof.IsValidStatus(status) {
			continue
		}
		if _, ok := seen[status]; ok {
			continue
		}
		seen[status] = struct{}{}
		result = append(result, status)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
