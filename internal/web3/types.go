package web3

import (
	"context"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainSnapshot represents summarized network metadata for health reporting.
type ChainSnapshot struct {
	Name        string `json:"name"`
	ChainID     string `json:"chainId"`
	BlockNumber string `json:"blockNumber"`
	Notes       string `json:"notes,omitempty"`
}

// Backend is the subset of an EVM node API needed to sign, send and confirm
// transactions. Both *ethclient.Client and the simulated chain client
// satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Submission captures a mined transaction.
type Submission struct {
	Hash        common.Hash
	Nonce       uint64
	BlockNumber uint64
}

// Sender sends calldata to an address and blocks until the transaction is
// mined. Implementations must serialise submissions from one account so the
// returned nonces follow call order.
type Sender interface {
	Send(ctx context.Context, to common.Address, data []byte) (Submission, error)
	From() common.Address
}
