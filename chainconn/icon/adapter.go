package icon

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ybbus/jsonrpc"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/config"
	"github.com/balancednetwork/xcall-tracker/entity"
)

const txStatusSuccess = "0x1"

// TxResult is the subset of icx_getTransactionResult the tracker needs.
type TxResult struct {
	Status    string     `json:"status"`
	TxHash    string     `json:"txHash"`
	EventLogs []EventLog `json:"eventLogs"`
}

type EventLog struct {
	ScoreAddress string   `json:"scoreAddress"`
	Indexed      []string `json:"indexed"`
	Data         []string `json:"data"`
}

type block struct {
	Height       int64 `json:"height"`
	Transactions []struct {
		TxHash string `json:"txHash"`
	} `json:"confirmed_transaction_list"`
}

// Adapter serves an ICON-family chain over its goloop JSON-RPC API.
type Adapter struct {
	chainID   string
	xcall     string
	client    jsonrpc.RPCClient
	submitter chainconn.Submitter
}

func NewAdapter(cfg *config.ChainConfig, submitter chainconn.Submitter) *Adapter {
	client := jsonrpc.NewClientWithOpts(cfg.RPC.Host, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: cfg.RPC.Timeout.Duration()},
	})
	return &Adapter{
		chainID:   cfg.ChainID,
		xcall:     cfg.XCallAddress,
		client:    client,
		submitter: submitter,
	}
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

func (a *Adapter) BlockHeight(_ context.Context) (uint64, error) {
	defer chainconn.ObserveDuration(a.chainID, "icx_getLastBlock")()
	resp, err := a.client.Call("icx_getLastBlock")
	chainconn.ObserveError(a.chainID, "icx_getLastBlock", err)
	if err != nil {
		return 0, fmt.Errorf("can't fetch last block: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("icx_getLastBlock failed: %s", resp.Error.Message)
	}
	var b block
	if err := resp.GetObject(&b); err != nil {
		return 0, fmt.Errorf("can't decode last block: %w", err)
	}
	return uint64(b.Height), nil
}

// TxReceipt returns a nil receipt while the transaction is still queued;
// goloop answers icx_getTransactionResult with an rpc error until the
// transaction is executed.
func (a *Adapter) TxReceipt(_ context.Context, hash string) (chainconn.Receipt, error) {
	defer chainconn.ObserveDuration(a.chainID, "icx_getTransactionResult")()
	resp, err := a.client.Call("icx_getTransactionResult", map[string]string{"txHash": hash})
	chainconn.ObserveError(a.chainID, "icx_getTransactionResult", err)
	if err != nil {
		return nil, fmt.Errorf("can't fetch transaction result: %w", err)
	}
	if resp.Error != nil {
		return nil, nil
	}
	result := new(TxResult)
	if err := resp.GetObject(result); err != nil {
		return nil, fmt.Errorf("can't decode transaction result: %w", err)
	}
	return result, nil
}

func (a *Adapter) DeriveTxStatus(receipt chainconn.Receipt) entity.TxStatus {
	r, ok := receipt.(*TxResult)
	if !ok || r == nil {
		return entity.TxStatusPending
	}
	if r.Status == txStatusSuccess {
		return entity.TxStatusSuccess
	}
	return entity.TxStatusFailure
}

func (a *Adapter) TxEventLogs(receipt chainconn.Receipt) []*entity.Event {
	r, ok := receipt.(*TxResult)
	if !ok || r == nil {
		return nil
	}
	var events []*entity.Event
	for i := range r.EventLogs {
		if e := a.decodeEventLog(&r.EventLogs[i], r.TxHash); e != nil {
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
	defer chainconn.ObserveDuration(a.chainID, "icx_getBlockByHeight")()
	resp, err := a.client.Call("icx_getBlockByHeight", map[string]string{
		"height": "0x" + strconv.FormatUint(height, 16),
	})
	chainconn.ObserveError(a.chainID, "icx_getBlockByHeight", err)
	if err != nil {
		return nil, fmt.Errorf("can't fetch block %d: %w", height, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("icx_getBlockByHeight %d failed: %s", height, resp.Error.Message)
	}
	var b block
	if err := resp.GetObject(&b); err != nil {
		return nil, fmt.Errorf("can't decode block %d: %w", height, err)
	}

	var events []*entity.Event
	for _, tx := range b.Transactions {
		receipt, err := a.TxReceipt(ctx, tx.TxHash)
		if err != nil {
			return nil, err
		}
		for _, e := range a.TxEventLogs(receipt) {
			e.DestinationChainID = a.chainID
			events = append(events, e)
		}
	}
	return events, nil
}

func (a *Adapter) decodeEventLog(log *EventLog, txHash string) *entity.Event {
	if len(log.Indexed) == 0 || (a.xcall != "" && log.ScoreAddress != a.xcall) {
		return nil
	}
	name, _, _ := strings.Cut(log.Indexed[0], "(")
	e := &entity.Event{TxHash: txHash}
	switch name {
	case "CallMessageSent":
		e.Type = entity.EventCallMessageSent
		e.Sn = hexUint(log.Indexed, 3)
	case "CallMessage":
		e.Type = entity.EventCallMessage
		e.Sn = hexUint(log.Indexed, 3)
		e.ReqID = hexUint(log.Data, 0)
	case "CallExecuted":
		e.Type = entity.EventCallExecuted
		e.ReqID = hexUint(log.Indexed, 1)
		e.Success = hexUint(log.Data, 0) == 1
	case "ResponseMessage":
		e.Type = entity.EventResponseMessage
		e.Sn = hexUint(log.Indexed, 1)
		e.Success = hexUint(log.Data, 0) == 1
	case "RollbackMessage":
		e.Type = entity.EventRollbackMessage
		e.Sn = hexUint(log.Indexed, 1)
	case "RollbackExecuted":
		e.Type = entity.EventRollbackExecuted
		e.Sn = hexUint(log.Indexed, 1)
	default:
		return nil
	}
	return e
}

func hexUint(values []string, i int) entity.BigUint {
	if i >= len(values) {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(values[i], "0x"), 16, 64)
	if err != nil {
		return 0
	}
	return entity.BigUint(v)
}
