package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ProofFlow-Chain/internal/web3"
)

// EVMLog 把每条记录作为交易 calldata 发往固定的 sink 地址。
// 发送账户的 nonce 即记录的序列号：同一账户的交易在链上严格按 nonce 排序，
// 并且 Send 会等到交易上链后才返回。
type EVMLog struct {
	sender  web3.Sender
	sink    common.Address
	channel string
}

// NewEVMLog 创建基于 EVM 链的共识日志。chain 仅用于生成通道 ID。
func NewEVMLog(sender web3.Sender, chain string, sinkAddress string) (*EVMLog, error) {
	if sender == nil {
		return nil, errors.New("EVM 共识日志缺少交易发送器")
	}
	sinkAddress = strings.TrimSpace(sinkAddress)
	if !common.IsHexAddress(sinkAddress) {
		return nil, fmt.Errorf("无效的 sink 地址 %q", sinkAddress)
	}
	sink := common.HexToAddress(sinkAddress)
	if strings.TrimSpace(chain) == "" {
		chain = "evm"
	}
	return &EVMLog{
		sender:  sender,
		sink:    sink,
		channel: fmt.Sprintf("%s:%s:%s", chain, sender.From().Hex(), sink.Hex()),
	}, nil
}

// Channel 返回由链名、发送账户与 sink 地址组成的通道 ID。
func (l *EVMLog) Channel(context.Context) (string, error) {
	return l.channel, nil
}

// Submit 发送记录并返回交易 nonce。
func (l *EVMLog) Submit(ctx context.Context, channelID string, payload []byte) (uint64, error) {
	if channelID != l.channel {
		return 0, errUnknownChannel(channelID)
	}
	sub, err := l.sender.Send(ctx, l.sink, payload)
	if err != nil {
		return 0, err
	}
	return sub.Nonce, nil
}
