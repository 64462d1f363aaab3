package credential

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/web3"
)

const mintABI = `[{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

// EVMLedger 调用代币合约的 mint(address,uint256)。
type EVMLedger struct {
	sender web3.Sender
	token  common.Address
	abi    abi.ABI
}

// NewEVMLedger 创建基于 EVM 代币合约的账本。
func NewEVMLedger(sender web3.Sender, tokenAddress string) (*EVMLedger, error) {
	if sender == nil {
		return nil, errors.New("EVM 账本缺少交易发送器")
	}
	tokenAddress = strings.TrimSpace(tokenAddress)
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("无效的代币合约地址 %q", tokenAddress)
	}
	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("解析 ABI 失败: %w", err)
	}
	return &EVMLedger{sender: sender, token: common.HexToAddress(tokenAddress), abi: parsed}, nil
}

// Mint 发送 mint 交易并返回交易哈希。身份必须是 EVM 地址。
func (l *EVMLedger) Mint(ctx context.Context, identity string, amount uint64) (string, error) {
	data, err := l.PackMint(identity, amount)
	if err != nil {
		return "", err
	}
	sub, err := l.sender.Send(ctx, l.token, data)
	if err != nil {
		return "", err
	}
	return sub.Hash.Hex(), nil
}

// PackMint 编码 mint 调用数据。非法地址返回不可重试的错误。
func (l *EVMLedger) PackMint(identity string, amount uint64) ([]byte, error) {
	identity = strings.TrimSpace(identity)
	if !common.IsHexAddress(identity) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无效的接收地址 %q", identity),
			xerrors.WithRetryable(false))
	}
	data, err := l.abi.Pack("mint", common.HexToAddress(identity), new(big.Int).SetUint64(amount))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码 mint 调用失败", xerrors.WithRetryable(false))
	}
	return data, nil
}
