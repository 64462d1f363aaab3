package consensus

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"ProofFlow-Chain/internal/web3/ethereum"
)

func TestEVMLogUsesNonceAsSequence(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	sim := simulated.NewBackend(coretypes.GenesisAlloc{
		from: {Balance: new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000_000_000))},
	})
	defer sim.Close()

	tr, err := ethereum.NewTransactor(ctx, sim.Client(), key,
		ethereum.WithCommitter(sim),
		ethereum.WithPolling(10*time.Millisecond, 5*time.Second),
	)
	if err != nil {
		t.Fatalf("new transactor: %v", err)
	}

	sink := "0x000000000000000000000000000000000000dEaD"
	evmLog, err := NewEVMLog(tr, "simulated", sink)
	if err != nil {
		t.Fatalf("new evm log: %v", err)
	}
	res, err := NewPublisher(evmLog).Publish(ctx, "p-evm", testSteps(t))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	for i, seq := range res.SequenceNumbers {
		if seq != uint64(i) {
			t.Fatalf("unexpected sequence numbers %v", res.SequenceNumbers)
		}
	}
	if res.CompletionSequence != 3 {
		t.Fatalf("unexpected completion sequence %d", res.CompletionSequence)
	}
	if res.ChannelID != "simulated:"+from.Hex()+":"+common.HexToAddress(sink).Hex() {
		t.Fatalf("unexpected channel %s", res.ChannelID)
	}

	if _, err := evmLog.Submit(ctx, "other", nil); err == nil {
		t.Fatalf("expected unknown channel error")
	}
}

func TestNewEVMLogValidatesSink(t *testing.T) {
	if _, err := NewEVMLog(nil, "x", "0x01"); err == nil {
		t.Fatalf("expected missing sender error")
	}
}
