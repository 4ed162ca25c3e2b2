package chainconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/balancednetwork/xcall-tracker/entity"
)

var (
	ErrUnknownChain           = errors.New("unknown chain")
	ErrSubmitterNotConfigured = errors.New("chain adapter has no submitter configured")
)

// TransferInput describes one user action to be submitted on the source
// chain. Amount and Attributes are presentational pass-through.
type TransferInput struct {
	Type               entity.TransferType
	SourceChainID      string
	DestinationChainID string
	Account            string
	Destination        string
	Amount             *entity.CurrencyAmount
	Attributes         map[string]string
}

// Receipt is an opaque chain-family-specific transaction receipt. Only
// the adapter that produced it can interpret it.
type Receipt interface{}

// Adapter is the per-chain-family capability set the tracker relies on.
// Submission methods return the transaction hash, or an empty string when
// the wallet rejected the request without an error.
type Adapter interface {
	ChainID() string

	ExecuteTransfer(ctx context.Context, input *TransferInput) (string, error)
	ExecuteSwap(ctx context.Context, input *TransferInput) (string, error)
	ExecuteDepositCollateral(ctx context.Context, input *TransferInput) (string, error)
	ExecuteWithdrawCollateral(ctx context.Context, input *TransferInput) (string, error)
	ExecuteBorrow(ctx context.Context, input *TransferInput) (string, error)
	ExecuteRepay(ctx context.Context, input *TransferInput) (string, error)

	BlockHeight(ctx context.Context) (uint64, error)
	TxReceipt(ctx context.Context, hash string) (Receipt, error)
	DeriveTxStatus(receipt Receipt) entity.TxStatus
	TxEventLogs(receipt Receipt) []*entity.Event
	SourceEvents(ctx context.Context, tx *entity.Transaction) (entity.EventMap, error)
	DestinationEventsByBlock(ctx context.Context, height uint64) ([]*entity.Event, error)
}

// Submitter signs and submits a source transaction. Wallet integration is
// out of scope for the tracker itself, so adapters take it as a plug-in.
type Submitter interface {
	Submit(ctx context.Context, input *TransferInput) (string, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.ChainID()] = a
}

func (r *Registry) Get(chainID string) (Adapter, error) {
	a, ok := r.adapters[chainID]
	if !ok {
		return nil, fmt.Errorf("no adapter for chain %s: %w", chainID, ErrUnknownChain)
	}
	return a, nil
}
