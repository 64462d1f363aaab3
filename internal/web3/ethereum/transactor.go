package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"ProofFlow-Chain/internal/web3"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultReceiptTimeout = 2 * time.Minute
)

// ErrReverted is returned when a transaction was mined with a failed status.
var ErrReverted = errors.New("transaction reverted")

// Config describes how to construct an EVM transactor from an RPC endpoint.
type Config struct {
	Name           string
	RPCURL         string
	ChainID        int64
	PrivateKeyHex  string
	Notes          string
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

// Committer seals pending transactions into a block. Only the simulated
// chain implements it; live networks mine on their own.
type Committer interface {
	Commit() common.Hash
}

// Option customises a Transactor.
type Option func(*Transactor)

// WithCommitter makes Send seal a block right after broadcasting.
func WithCommitter(c Committer) Option {
	return func(t *Transactor) {
		t.committer = c
	}
}

// WithChainID skips the chain id lookup during construction.
func WithChainID(id *big.Int) Option {
	return func(t *Transactor) {
		if id != nil && id.Sign() > 0 {
			t.chainID = new(big.Int).Set(id)
		}
	}
}

// WithPolling overrides the receipt polling cadence.
func WithPolling(interval, timeout time.Duration) Option {
	return func(t *Transactor) {
		if interval > 0 {
			t.pollInterval = interval
		}
		if timeout > 0 {
			t.receiptTimeout = timeout
		}
	}
}

// WithName labels the transactor in chain snapshots.
func WithName(name, notes string) Option {
	return func(t *Transactor) {
		t.name = name
		t.notes = notes
	}
}

// Transactor signs legacy transactions with a single key and submits them one
// at a time, waiting for each receipt before releasing the account.
type Transactor struct {
	name    string
	notes   string
	backend web3.Backend
	closer  func()

	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	committer      Committer
	pollInterval   time.Duration
	receiptTimeout time.Duration

	mu        sync.Mutex
	nextNonce *uint64
}

var _ web3.Sender = (*Transactor)(nil)

// Dial connects to the RPC endpoint described by cfg.
func Dial(ctx context.Context, cfg Config) (*Transactor, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}
	key, err := ParsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	opts := []Option{
		WithName(cfg.Name, cfg.Notes),
		WithPolling(cfg.PollInterval, cfg.ReceiptTimeout),
	}
	if cfg.ChainID > 0 {
		opts = append(opts, WithChainID(big.NewInt(cfg.ChainID)))
	}
	t, err := NewTransactor(ctx, eth, key, opts...)
	if err != nil {
		eth.Close()
		return nil, err
	}
	t.closer = eth.Close
	return t, nil
}

// NewTransactor wraps an existing backend.
func NewTransactor(ctx context.Context, backend web3.Backend, key *ecdsa.PrivateKey, opts ...Option) (*Transactor, error) {
	if backend == nil {
		return nil, errors.New("以太坊后端不能为空")
	}
	if key == nil {
		return nil, errors.New("未提供交易签名私钥")
	}
	t := &Transactor{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		pollInterval:   defaultPollInterval,
		receiptTimeout: defaultReceiptTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.chainID == nil {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取链 ID 失败: %w", err)
		}
		t.chainID = id
	}
	return t, nil
}

// ParsePrivateKey decodes a hex encoded secp256k1 key, with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("未配置交易签名私钥")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return key, nil
}

// From returns the signing account.
func (t *Transactor) From() common.Address {
	return t.from
}

// ChainID returns a copy of the signer chain id.
func (t *Transactor) ChainID() *big.Int {
	return new(big.Int).Set(t.chainID)
}

// Send signs and broadcasts a transaction carrying data to the target address
// and waits until it is mined. Calls are serialised so nonces are assigned in
// call order.
func (t *Transactor) Send(ctx context.Context, to common.Address, data []byte) (web3.Submission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.pendingNonce(ctx)
	if err != nil {
		return web3.Submission{}, err
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return web3.Submission{}, fmt.Errorf("获取 gas 价格失败: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, gethcore.CallMsg{
		From:     t.from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return web3.Submission{}, fmt.Errorf("估算 gas 失败: %w", err)
	}

	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     common.CopyBytes(data),
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return web3.Submission{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		t.nextNonce = nil
		return web3.Submission{}, fmt.Errorf("发送交易失败: %w", err)
	}
	next := nonce + 1
	t.nextNonce = &next

	if t.committer != nil {
		t.committer.Commit()
	}

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		return web3.Submission{}, err
	}
	sub := web3.Submission{Hash: signed.Hash(), Nonce: nonce}
	if receipt.BlockNumber != nil {
		sub.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return sub, fmt.Errorf("%w: %s", ErrReverted, signed.Hash().Hex())
	}
	return sub, nil
}

// Snapshot gathers lightweight chain metadata.
func (t *Transactor) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	block, err := t.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		Name:        t.name,
		ChainID:     toHexBig(t.chainID),
		BlockNumber: fmt.Sprintf("0x%x", block),
		Notes:       t.notes,
	}, nil
}

// Close releases the RPC connection when the transactor owns it.
func (t *Transactor) Close() {
	if t == nil || t.closer == nil {
		return
	}
	t.closer()
	t.closer = nil
}

func (t *Transactor) pendingNonce(ctx context.Context) (uint64, error) {
	if t.nextNonce != nil {
		return *t.nextNonce, nil
	}
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return 0, fmt.Errorf("查询交易计数失败: %w", err)
	}
	return nonce, nil
}

func (t *Transactor) waitMined(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, fmt.Errorf("查询交易回执失败: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("等待交易 %s 上链超时: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
