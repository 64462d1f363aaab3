package credential

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/web3"
)

type captureSender struct {
	to   common.Address
	data []byte
}

func (c *captureSender) Send(_ context.Context, to common.Address, data []byte) (web3.Submission, error) {
	c.to = to
	c.data = data
	return web3.Submission{Hash: common.HexToHash("0x1234"), Nonce: 4}, nil
}

func (c *captureSender) From() common.Address { return common.HexToAddress("0x01") }

func TestEVMLedgerPacksMintCall(t *testing.T) {
	sender := &captureSender{}
	token := "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	ledger, err := NewEVMLedger(sender, token)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	recipient := "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	ref, err := ledger.Mint(context.Background(), recipient, 1)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if ref != common.HexToHash("0x1234").Hex() {
		t.Fatalf("unexpected tx ref %s", ref)
	}
	if sender.to != common.HexToAddress(token) {
		t.Fatalf("mint sent to %s", sender.to.Hex())
	}
	if len(sender.data) != 4+32+32 {
		t.Fatalf("unexpected calldata length %d", len(sender.data))
	}
	if !bytes.Equal(sender.data[:4], common.FromHex("0x40c10f19")) {
		t.Fatalf("unexpected selector %x", sender.data[:4])
	}
	if !bytes.Equal(sender.data[4+12:36], common.HexToAddress(recipient).Bytes()) {
		t.Fatalf("recipient not encoded")
	}
	if sender.data[len(sender.data)-1] != 1 {
		t.Fatalf("amount not encoded")
	}
}

func TestEVMLedgerRejectsNonAddressIdentity(t *testing.T) {
	ledger, err := NewEVMLedger(&captureSender{}, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	_, err = ledger.Mint(context.Background(), "0.0.1001", 1)
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument || xerrors.RetryableError(err) {
		t.Fatalf("expected non-retryable invalid argument, got %v", err)
	}
	if _, err := NewEVMLedger(&captureSender{}, "token"); err == nil {
		t.Fatalf("expected invalid token address error")
	}
}
