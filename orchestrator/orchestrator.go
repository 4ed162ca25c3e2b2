package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/storage"
	"github.com/balancednetwork/xcall-tracker/tracker"
)

var ErrUnknownTransferType = errors.New("unknown transfer type")

// UIHandler receives transfer lifecycle signals, used by the UI layer to
// open and close the confirmation modal for the transfer's action type.
// All methods are called outside the service's lock.
type UIHandler interface {
	TransferCreated(t *entity.Transfer)
	TransferFinalized(t *entity.Transfer)
}

// Service coordinates one user action across one or two cross-chain
// messages. Routes are hub-and-spoke: any transfer not starting on the
// hub chain is relayed through it, and needs a secondary message when
// the hub is not the final destination.
type Service struct {
	ctx          context.Context
	adapters     *chainconn.Registry
	tracker      *tracker.Service
	bucket       *storage.Bucket
	logger       logging.Logger
	hubChainID   string
	heightMargin uint64

	mu        sync.Mutex
	transfers map[string]*entity.Transfer
	currentID string
	ui        UIHandler
}

func New(ctx context.Context, adapters *chainconn.Registry, tr *tracker.Service, bucket *storage.Bucket, logger logging.Logger, hubChainID string, heightMargin uint64) *Service {
	s := &Service{
		ctx:          ctx,
		adapters:     adapters,
		tracker:      tr,
		bucket:       bucket,
		logger:       logger,
		hubChainID:   hubChainID,
		heightMargin: heightMargin,
		transfers:    make(map[string]*entity.Transfer),
	}
	tr.SetUpdateHandler(s.OnMessageUpdate)
	return s
}

func (s *Service) SetUIHandler(h UIHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui = h
}

// ExecuteTransfer submits the source transaction for the requested action
// and starts tracking its primary message. Destination block heights are
// captured before submission so the scanners' lower bounds are ready the
// moment the messages exist; the primary one is backdated by the height
// margin to tolerate propagation skew between RPC nodes.
//
// When the adapter yields no transaction hash (the wallet rejected the
// request), the orchestrator resets silently and returns a nil transfer
// with no error.
func (s *Service) ExecuteTransfer(ctx context.Context, input *chainconn.TransferInput) (*entity.Transfer, error) {
	srcAdapter, err := s.adapters.Get(input.SourceChainID)
	if err != nil {
		return nil, err
	}
	finalAdapter, err := s.adapters.Get(input.DestinationChainID)
	if err != nil {
		return nil, err
	}
	primaryDestID := s.hubChainID
	if input.SourceChainID == s.hubChainID {
		primaryDestID = input.DestinationChainID
	}
	primaryAdapter, err := s.adapters.Get(primaryDestID)
	if err != nil {
		return nil, err
	}
	secondaryRequired := primaryDestID != input.DestinationChainID

	finalHeight, err := finalAdapter.BlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't fetch final destination block height: %w", err)
	}
	primaryHeight, err := primaryAdapter.BlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't fetch primary destination block height: %w", err)
	}
	if primaryHeight > s.heightMargin {
		primaryHeight -= s.heightMargin
	} else {
		primaryHeight = 0
	}

	hash, err := s.submit(ctx, srcAdapter, input)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		s.mu.Lock()
		s.currentID = ""
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{
			"type":         input.Type,
			"source_chain": input.SourceChainID,
		}).Warn("no transaction hash returned, aborting transfer")
		return nil, nil
	}

	srcTx := &entity.Transaction{
		ID:        entity.TransactionID(input.SourceChainID, hash),
		Hash:      hash,
		ChainID:   input.SourceChainID,
		Status:    entity.TxStatusPending,
		Timestamp: time.Now().UnixMilli(),
	}
	msg := &entity.Message{
		ID:                      srcTx.ID,
		SourceChainID:           input.SourceChainID,
		DestinationChainID:      primaryDestID,
		SourceTransaction:       srcTx,
		Events:                  entity.EventMap{},
		DestinationInitialBlock: entity.BigUint(primaryHeight),
	}
	transfer := &entity.Transfer{
		ID:                           msg.ID,
		Type:                         input.Type,
		Status:                       entity.TransferStatusPending,
		PrimaryMessageID:             msg.ID,
		SecondaryMessageRequired:     secondaryRequired,
		SourceChainID:                input.SourceChainID,
		FinalDestinationChainID:      input.DestinationChainID,
		FinalDestinationInitialBlock: entity.BigUint(finalHeight),
		Amount:                       input.Amount,
		Attributes:                   input.Attributes,
	}

	s.mu.Lock()
	s.transfers[transfer.ID] = transfer
	s.currentID = transfer.ID
	snap := transfer.Clone()
	ui := s.ui
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"transfer_id":        snap.ID,
		"type":               snap.Type,
		"source_chain":       snap.SourceChainID,
		"destination_chain":  snap.FinalDestinationChainID,
		"secondary_required": snap.SecondaryMessageRequired,
	}).Info("transfer submitted")
	s.persist()
	s.tracker.Add(msg)
	if ui != nil {
		ui.TransferCreated(snap)
	}
	return snap, nil
}

func (s *Service) submit(ctx context.Context, adapter chainconn.Adapter, input *chainconn.TransferInput) (string, error) {
	switch input.Type {
	case entity.TransferBridge:
		return adapter.ExecuteTransfer(ctx, input)
	case entity.TransferSwap:
		return adapter.ExecuteSwap(ctx, input)
	case entity.TransferDepositCollateral:
		return adapter.ExecuteDepositCollateral(ctx, input)
	case entity.TransferWithdrawCollateral:
		return adapter.ExecuteWithdrawCollateral(ctx, input)
	case entity.TransferBorrow:
		return adapter.ExecuteBorrow(ctx, input)
	case entity.TransferRepay:
		return adapter.ExecuteRepay(ctx, input)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTransferType, input.Type)
	}
}

// OnMessageUpdate is the tracker's update callback. Only terminal message
// statuses drive the transfer state machine; every other (status, leg)
// combination is a no-op, since messages emit several non-terminal
// updates on the way.
func (s *Service) OnMessageUpdate(id string, msg *entity.Message) {
	s.mu.Lock()
	var transfer *entity.Transfer
	for _, t := range s.transfers {
		if t.PrimaryMessageID == id || (t.SecondaryMessageID != "" && t.SecondaryMessageID == id) {
			transfer = t.Clone()
			break
		}
	}
	s.mu.Unlock()
	if transfer == nil {
		return
	}

	if id == transfer.PrimaryMessageID {
		switch msg.Status {
		case entity.MessageStatusCallExecuted:
			if transfer.SecondaryMessageRequired {
				s.createSecondaryMessage(transfer, msg)
			} else {
				s.finalize(transfer.ID, entity.TransferStatusSuccess)
			}
		case entity.MessageStatusFailed:
			s.finalize(transfer.ID, entity.TransferStatusFailure)
		}
		return
	}
	switch msg.Status {
	case entity.MessageStatusCallExecuted:
		s.finalize(transfer.ID, entity.TransferStatusSuccess)
	case entity.MessageStatusFailed:
		s.finalize(transfer.ID, entity.TransferStatusFailure)
	}
}

// createSecondaryMessage chains the second leg from the hub chain to the
// final destination. A primary message in call_executed always carries
// its destination transaction; its absence is a programming-contract
// violation, not a runtime condition.
func (s *Service) createSecondaryMessage(transfer *entity.Transfer, primary *entity.Message) {
	if primary.DestinationTransaction == nil {
		panic(fmt.Sprintf("message %s reached call_executed without a destination transaction", primary.ID))
	}
	srcTx := primary.DestinationTransaction.Clone()
	msg := &entity.Message{
		ID:                      srcTx.ID,
		SourceChainID:           primary.DestinationChainID,
		DestinationChainID:      transfer.FinalDestinationChainID,
		SourceTransaction:       srcTx,
		Events:                  entity.EventMap{},
		DestinationInitialBlock: transfer.FinalDestinationInitialBlock,
	}

	s.mu.Lock()
	if t, ok := s.transfers[transfer.ID]; ok {
		t.SecondaryMessageID = msg.ID
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"transfer_id":          transfer.ID,
		"secondary_message_id": msg.ID,
	}).Info("starting secondary message leg")
	s.persist()
	s.tracker.Add(msg)
}

// finalize is idempotent: replayed terminal updates and transfers that
// are no longer current leave the UI untouched.
func (s *Service) finalize(id string, status entity.TransferStatus) {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok || t.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	t.Status = status
	wasCurrent := s.currentID == id
	if wasCurrent {
		s.currentID = ""
	}
	snap := t.Clone()
	ui := s.ui
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"transfer_id": id,
		"status":      status,
	}).Info("transfer finalized")
	s.persist()
	if wasCurrent && ui != nil {
		ui.TransferFinalized(snap)
	}
}

func (s *Service) Get(id string) (*entity.Transfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Current returns the single in-flight transfer of this session, if any.
func (s *Service) Current() (*entity.Transfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == "" {
		return nil, false
	}
	t, ok := s.transfers[s.currentID]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// PendingTransfers returns all transfers that have not succeeded and
// whose source chain has a signed-in wallet, most recent first by the
// primary message's source transaction timestamp. Transfers whose primary
// message cannot be resolved keep their relative order at the end.
func (s *Service) PendingTransfers(signedChains []string) []*entity.Transfer {
	signed := make(map[string]bool, len(signedChains))
	for _, c := range signedChains {
		signed[c] = true
	}

	s.mu.Lock()
	result := make([]*entity.Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		if t.Status != entity.TransferStatusSuccess && signed[t.SourceChainID] {
			result = append(result, t.Clone())
		}
	}
	s.mu.Unlock()

	timestamp := func(t *entity.Transfer) int64 {
		msg, ok := s.tracker.Get(t.PrimaryMessageID)
		if !ok || msg.SourceTransaction == nil {
			return 0
		}
		return msg.SourceTransaction.Timestamp
	}
	sort.SliceStable(result, func(i, j int) bool {
		return timestamp(result[i]) > timestamp(result[j])
	})
	return result
}

type persistedTable struct {
	Transfers map[string]json.RawMessage `json:"transfers"`
	CurrentID string                     `json:"current_id"`
}

// Load hydrates the transfer table. Undecodable records are logged and
// skipped.
func (s *Service) Load(ctx context.Context) error {
	var table persistedTable
	if err := s.bucket.Load(ctx, &table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, blob := range table.Transfers {
		t := new(entity.Transfer)
		if err := json.Unmarshal(blob, t); err != nil {
			s.logger.WithError(err).WithField("transfer_id", id).Error("can't restore persisted transfer, skipping")
			continue
		}
		s.transfers[id] = t
	}
	s.currentID = table.CurrentID
	return nil
}

func (s *Service) persist() {
	s.mu.Lock()
	table := persistedTable{
		Transfers: make(map[string]json.RawMessage, len(s.transfers)),
		CurrentID: s.currentID,
	}
	var failed []string
	for id, t := range s.transfers {
		blob, err := json.Marshal(t)
		if err != nil {
			failed = append(failed, id)
			continue
		}
		table.Transfers[id] = blob
	}
	s.mu.Unlock()

	for _, id := range failed {
		s.logger.WithField("transfer_id", id).Error("can't marshal transfer, not persisted")
	}
	if err := s.bucket.Save(s.ctx, &table); err != nil {
		s.logger.WithError(err).Error("can't persist transfer table")
	}
}
