package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/config"
	"github.com/balancednetwork/xcall-tracker/entity"
)

var (
	topicCallMessageSent  = crypto.Keccak256Hash([]byte("CallMessageSent(address,string,uint256)"))
	topicCallMessage      = crypto.Keccak256Hash([]byte("CallMessage(string,string,uint256,uint256,bytes)"))
	topicCallExecuted     = crypto.Keccak256Hash([]byte("CallExecuted(uint256,int256,string)"))
	topicResponseMessage  = crypto.Keccak256Hash([]byte("ResponseMessage(uint256,int256)"))
	topicRollbackMessage  = crypto.Keccak256Hash([]byte("RollbackMessage(uint256)"))
	topicRollbackExecuted = crypto.Keccak256Hash([]byte("RollbackExecuted(uint256)"))
)

const successCode = 1

// Adapter serves one EVM-family chain through its JSON-RPC endpoint,
// decoding xcall events from the configured contract's logs.
type Adapter struct {
	chainID   string
	xcall     common.Address
	timeout   time.Duration
	client    *ethclient.Client
	submitter chainconn.Submitter
}

func NewAdapter(cfg *config.ChainConfig, submitter chainconn.Submitter) (*Adapter, error) {
	timeout := cfg.RPC.Timeout.Duration()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, cfg.RPC.Host)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	return &Adapter{
		chainID:   cfg.ChainID,
		xcall:     common.HexToAddress(cfg.XCallAddress),
		timeout:   timeout,
		client:    ethclient.NewClient(rawClient),
		submitter: submitter,
	}, nil
}

func (a *Adapter) ChainID() string {
	return a.chainID
}

func (a *Adapter) ExecuteTransfer(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) ExecuteSwap(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) ExecuteDepositCollateral(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) ExecuteWithdrawCollateral(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) ExecuteBorrow(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) ExecuteRepay(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(ctx, input)
}

func (a *Adapter) submit(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	if a.submitter == nil {
		return "", chainconn.ErrSubmitterNotConfigured
	}
	return a.submitter.Submit(ctx, input)
}

func (a *Adapter) BlockHeight(ctx context.Context) (uint64, error) {
	defer chainconn.ObserveDuration(a.chainID, "eth_blockNumber")()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	n, err := a.client.BlockNumber(ctx)
	chainconn.ObserveError(a.chainID, "eth_blockNumber", err)
	return n, err
}

func (a *Adapter) TxReceipt(ctx context.Context, hash string) (chainconn.Receipt, error) {
	defer chainconn.ObserveDuration(a.chainID, "eth_getTransactionReceipt")()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		// not mined yet, still pending
		return nil, nil
	}
	chainconn.ObserveError(a.chainID, "eth_getTransactionReceipt", err)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (a *Adapter) DeriveTxStatus(receipt chainconn.Receipt) entity.TxStatus {
	r, ok := receipt.(*types.Receipt)
	if !ok || r == nil {
		return entity.TxStatusPending
	}
	if r.Status == types.ReceiptStatusSuccessful {
		return entity.TxStatusSuccess
	}
	return entity.TxStatusFailure
}

func (a *Adapter) TxEventLogs(receipt chainconn.Receipt) []*entity.Event {
	r, ok := receipt.(*types.Receipt)
	if !ok || r == nil {
		return nil
	}
	var events []*entity.Event
	for _, log := range r.Logs {
		if e := a.decodeLog(log); e != nil {
			events = append(events, e)
		}
	}
	return events
}

func (a *Adapter) SourceEvents(ctx context.Context, tx *entity.Transaction) (entity.EventMap, error) {
	receipt, err := a.TxReceipt(ctx, tx.Hash)
	if err != nil {
		return nil, err
	}
	events := entity.EventMap{}
	for _, e := range a.TxEventLogs(receipt) {
		switch e.Type {
		case entity.EventCallMessageSent, entity.EventResponseMessage,
			entity.EventRollbackMessage, entity.EventRollbackExecuted:
			e.SourceChainID = a.chainID
			events[e.Type] = e
		}
	}
	return events, nil
}

func (a *Adapter) DestinationEventsByBlock(ctx context.Context, height uint64) ([]*entity.Event, error) {
	defer chainconn.ObserveDuration(a.chainID, "eth_getLogs")()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	block := new(big.Int).SetUint64(height)
	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: block,
		ToBlock:   block,
		Addresses: []common.Address{a.xcall},
	})
	chainconn.ObserveError(a.chainID, "eth_getLogs", err)
	if err != nil {
		return nil, err
	}
	var events []*entity.Event
	for i := range logs {
		if e := a.decodeLog(&logs[i]); e != nil {
			e.DestinationChainID = a.chainID
			events = append(events, e)
		}
	}
	return events, nil
}

func (a *Adapter) decodeLog(log *types.Log) *entity.Event {
	if len(log.Topics) == 0 {
		return nil
	}
	e := &entity.Event{TxHash: log.TxHash.Hex()}
	switch log.Topics[0] {
	case topicCallMessageSent:
		e.Type = entity.EventCallMessageSent
		e.Sn = topicUint(log.Topics, 3)
	case topicCallMessage:
		e.Type = entity.EventCallMessage
		e.Sn = topicUint(log.Topics, 3)
		e.ReqID = dataUint(log.Data, 0)
	case topicCallExecuted:
		e.Type = entity.EventCallExecuted
		e.ReqID = topicUint(log.Topics, 1)
		e.Success = dataUint(log.Data, 0).Uint64() == successCode
	case topicResponseMessage:
		e.Type = entity.EventResponseMessage
		e.Sn = topicUint(log.Topics, 1)
		e.Success = dataUint(log.Data, 0).Uint64() == successCode
	case topicRollbackMessage:
		e.Type = entity.EventRollbackMessage
		e.Sn = topicUint(log.Topics, 1)
	case topicRollbackExecuted:
		e.Type = entity.EventRollbackExecuted
		e.Sn = topicUint(log.Topics, 1)
	default:
		return nil
	}
	return e
}

func topicUint(topics []common.Hash, i int) entity.BigUint {
	if i >= len(topics) {
		return 0
	}
	return entity.BigUint(new(big.Int).SetBytes(topics[i].Bytes()).Uint64())
}

func dataUint(data []byte, word int) entity.BigUint {
	start := word * 32
	if len(data) < start+32 {
		return 0
	}
	return entity.BigUint(new(big.Int).SetBytes(data[start : start+32]).Uint64())
}
