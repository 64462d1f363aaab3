package credential

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Ledger 是外部代币账本的边界。账本本身不提供防重复发放保护。
type Ledger interface {
	Mint(ctx context.Context, identity string, amount uint64) (string, error)
}

// MintRecord 记录内存账本中的一次发放。
type MintRecord struct {
	Identity string
	Amount   uint64
	TxRef    string
}

// MemoryLedger 是进程内账本，可以注入连续失败。
type MemoryLedger struct {
	mu       sync.Mutex
	failures []error
	mints    []MintRecord
	calls    int
}

// NewMemoryLedger 创建内存账本。
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// FailNext 让接下来的调用依次返回给定错误。
func (m *MemoryLedger) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Mint 记录一次发放并返回伪交易引用。
func (m *MemoryLedger) Mint(ctx context.Context, identity string, amount uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return "", err
	}
	ref := fmt.Sprintf("memory-mint-%d@%s", len(m.mints)+1, strings.ToLower(identity))
	m.mints = append(m.mints, MintRecord{Identity: identity, Amount: amount, TxRef: ref})
	return ref, nil
}

// Mints 返回成功发放的记录。
func (m *MemoryLedger) Mints() []MintRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MintRecord(nil), m.mints...)
}

// Calls 返回 Mint 的调用次数，包括失败的调用。
func (m *MemoryLedger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
