// Package chainconntest provides an in-memory chain adapter for tests.
package chainconntest

import (
	"context"
	"sync"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/entity"
)

// Receipt is the fake chain's transaction receipt.
type Receipt struct {
	Hash   string
	Status entity.TxStatus
	Events []*entity.Event
}

// Adapter implements chainconn.Adapter against fixture data set by the
// test. All setters are safe to call while services are polling.
type Adapter struct {
	chainID string

	mu            sync.Mutex
	height        uint64
	heightErr     error
	receipts      map[string]*Receipt
	eventsByBlock map[uint64][]*entity.Event
	blockErr      error
	submitHash    string
	submitErr     error

	blockScans  int
	submissions []*chainconn.TransferInput
}

func New(chainID string) *Adapter {
	return &Adapter{
		chainID:       chainID,
		receipts:      make(map[string]*Receipt),
		eventsByBlock: make(map[uint64][]*entity.Event),
	}
}

func (a *Adapter) ChainID() string {
	return a.chainID
}

func (a *Adapter) SetHeight(height uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.height = height
}

func (a *Adapter) SetHeightErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.heightErr = err
}

func (a *Adapter) SetReceipt(r *Receipt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts[r.Hash] = r
}

func (a *Adapter) SetBlockEvents(height uint64, events []*entity.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventsByBlock[height] = events
}

func (a *Adapter) SetBlockErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blockErr = err
}

func (a *Adapter) SetSubmitResult(hash string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submitHash, a.submitErr = hash, err
}

// BlockScans reports how many times DestinationEventsByBlock ran.
func (a *Adapter) BlockScans() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blockScans
}

// Submissions returns every transfer input submitted so far.
func (a *Adapter) Submissions() []*chainconn.TransferInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*chainconn.TransferInput, len(a.submissions))
	copy(out, a.submissions)
	return out
}

func (a *Adapter) ExecuteTransfer(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) ExecuteSwap(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) ExecuteDepositCollateral(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) ExecuteWithdrawCollateral(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) ExecuteBorrow(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) ExecuteRepay(ctx context.Context, input *chainconn.TransferInput) (string, error) {
	return a.submit(input)
}

func (a *Adapter) submit(input *chainconn.TransferInput) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submissions = append(a.submissions, input)
	return a.submitHash, a.submitErr
}

func (a *Adapter) BlockHeight(_ context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height, a.heightErr
}

func (a *Adapter) TxReceipt(_ context.Context, hash string) (chainconn.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.receipts[hash]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (a *Adapter) DeriveTxStatus(receipt chainconn.Receipt) entity.TxStatus {
	r, ok := receipt.(*Receipt)
	if !ok || r == nil {
		return entity.TxStatusPending
	}
	return r.Status
}

func (a *Adapter) TxEventLogs(receipt chainconn.Receipt) []*entity.Event {
	r, ok := receipt.(*Receipt)
	if !ok || r == nil {
		return nil
	}
	return r.Events
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
			ev := *e
			ev.SourceChainID = a.chainID
			events[ev.Type] = &ev
		}
	}
	return events, nil
}

func (a *Adapter) DestinationEventsByBlock(_ context.Context, height uint64) ([]*entity.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blockScans++
	if a.blockErr != nil {
		return nil, a.blockErr
	}
	src := a.eventsByBlock[height]
	events := make([]*entity.Event, 0, len(src))
	for _, e := range src {
		ev := *e
		ev.DestinationChainID = a.chainID
		events = append(events, &ev)
	}
	return events, nil
}
