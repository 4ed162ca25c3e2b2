package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/scanner"
	"github.com/balancednetwork/xcall-tracker/storage"
	"github.com/balancednetwork/xcall-tracker/timer"
)

// UpdateHandler is notified after every message status change. This is
// the only coupling point towards the transfer orchestrator; it is a
// registered callback rather than a back-pointer so neither side owns
// the other.
type UpdateHandler func(id string, msg *entity.Message)

// Service owns all tracked messages. Each non-terminal message gets its
// own refresh timer plus a destination-chain event scanner; both are torn
// down when the message reaches call_executed or failed.
type Service struct {
	ctx      context.Context
	adapters *chainconn.Registry
	scanner  *scanner.Service
	timers   *timer.Registry
	bucket   *storage.Bucket
	logger   logging.Logger
	interval time.Duration

	mu       sync.Mutex
	messages map[string]*entity.Message
	onUpdate UpdateHandler
}

func New(ctx context.Context, adapters *chainconn.Registry, sc *scanner.Service, timers *timer.Registry, bucket *storage.Bucket, logger logging.Logger, interval time.Duration) *Service {
	return &Service{
		ctx:      ctx,
		adapters: adapters,
		scanner:  sc,
		timers:   timers,
		bucket:   bucket,
		logger:   logger,
		interval: interval,
		messages: make(map[string]*entity.Message),
	}
}

func (s *Service) SetUpdateHandler(h UpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = h
}

// Add registers a new message and starts tracking it. The initial status
// is derived immediately, so a message created from an already confirmed
// source transaction does not linger in requested.
func (s *Service) Add(msg *entity.Message) {
	s.mu.Lock()
	if msg.Events == nil {
		msg.Events = entity.EventMap{}
	}
	msg.Status = DeriveStatus(msg.SourceTransaction, msg.Events, msg.DestinationTransaction)
	s.messages[msg.ID] = msg
	snap := msg.Clone()
	handler := s.onUpdate
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"message_id":        snap.ID,
		"source_chain":      snap.SourceChainID,
		"destination_chain": snap.DestinationChainID,
		"status":            snap.Status,
	}).Info("tracking new cross-chain message")
	s.persist()
	if snap.Status.IsTerminal() {
		// already done at registration time, nothing to track; the owner
		// still gets notified so it can finalize
		if handler != nil {
			handler(snap.ID, snap)
		}
		return
	}
	s.startTracking(snap)
}

func (s *Service) Get(id string) (*entity.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, false
	}
	return msg.Clone(), true
}

// Load hydrates the message table from durable storage. Records that fail
// to decode are logged and skipped, never aborting hydration.
func (s *Service) Load(ctx context.Context) error {
	var raw map[string]json.RawMessage
	if err := s.bucket.Load(ctx, &raw); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, blob := range raw {
		msg := new(entity.Message)
		if err := json.Unmarshal(blob, msg); err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("can't restore persisted message, skipping")
			continue
		}
		s.messages[id] = msg
	}
	return nil
}

// Resume restarts scanners and refresh timers for every non-terminal
// message, typically right after Load.
func (s *Service) Resume() {
	s.mu.Lock()
	pending := make([]*entity.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if !msg.Status.IsTerminal() {
			pending = append(pending, msg.Clone())
		}
	}
	s.mu.Unlock()

	for _, msg := range pending {
		s.logger.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"status":     msg.Status,
		}).Info("resuming cross-chain message tracking")
		s.startTracking(msg)
	}
}

// RefreshMessage runs one tracking tick for a message: poll the source
// receipt while it is pending, fetch source-side events while awaiting
// CallMessageSent, correlate destination events afterwards. Errors are
// logged and retried on the next tick.
func (s *Service) RefreshMessage(id string) {
	msg, ok := s.Get(id)
	if !ok {
		s.stopTracking(id)
		return
	}
	if msg.Status.IsTerminal() {
		s.stopTracking(id)
		return
	}

	if msg.SourceTransaction != nil && msg.SourceTransaction.Status == entity.TxStatusPending {
		if err := s.UpdateSourceTransaction(s.ctx, id); err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("can't refresh source transaction")
			return
		}
		if msg, ok = s.Get(id); !ok {
			return
		}
	}

	switch msg.Status {
	case entity.MessageStatusAwaitingCallMessageSent:
		adapter, err := s.adapters.Get(msg.SourceChainID)
		if err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("no source chain adapter")
			return
		}
		events, err := adapter.SourceEvents(s.ctx, msg.SourceTransaction)
		if err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("can't fetch source events")
			return
		}
		if err := s.UpdateEvents(s.ctx, id, events); err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("can't merge source events")
		}
	case entity.MessageStatusCallMessageSent, entity.MessageStatusCallMessage:
		sn := msg.Sn()
		if sn == 0 {
			return
		}
		events := s.scanner.DestinationEvents(msg.DestinationChainID, sn)
		if len(events) == 0 {
			return
		}
		if err := s.UpdateEvents(s.ctx, id, events); err != nil {
			s.logger.WithError(err).WithField("message_id", id).Error("can't merge destination events")
		}
	}
}

// UpdateSourceTransaction re-queries the source chain for the receipt and
// re-derives the message status.
func (s *Service) UpdateSourceTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	msg, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown message %s", id)
	}
	chainID, hash := msg.SourceChainID, msg.SourceTransaction.Hash
	s.mu.Unlock()

	adapter, err := s.adapters.Get(chainID)
	if err != nil {
		return err
	}
	receipt, err := adapter.TxReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("can't fetch source receipt: %w", err)
	}
	status := adapter.DeriveTxStatus(receipt)

	s.mu.Lock()
	msg, ok = s.messages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown message %s", id)
	}
	if !msg.SourceTransaction.Status.IsTerminal() {
		msg.SourceTransaction.Status = status
	}
	s.mu.Unlock()

	s.recompute(id)
	return nil
}

// UpdateEvents merges newly observed events into the message. If a
// CallExecuted event is now present and the destination transaction is
// still unknown, its receipt is fetched before the status is re-derived;
// this is the only place a destination transaction is populated.
func (s *Service) UpdateEvents(ctx context.Context, id string, events entity.EventMap) error {
	s.mu.Lock()
	msg, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown message %s", id)
	}
	msg.Events.Merge(events)
	var destHash string
	if e, ok := msg.Events[entity.EventCallExecuted]; ok && msg.DestinationTransaction == nil {
		destHash = e.TxHash
	}
	destChain := msg.DestinationChainID
	s.mu.Unlock()

	if destHash != "" {
		if err := s.fetchDestinationTransaction(ctx, id, destChain, destHash); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"message_id": id,
				"tx_hash":    destHash,
			}).Error("can't fetch destination receipt, retrying next tick")
		}
	}

	s.recompute(id)
	return nil
}

func (s *Service) fetchDestinationTransaction(ctx context.Context, id, chainID, hash string) error {
	adapter, err := s.adapters.Get(chainID)
	if err != nil {
		return err
	}
	receipt, err := adapter.TxReceipt(ctx, hash)
	if err != nil {
		return fmt.Errorf("can't fetch destination receipt: %w", err)
	}
	status := adapter.DeriveTxStatus(receipt)
	if status == entity.TxStatusPending {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("unknown message %s", id)
	}
	if msg.DestinationTransaction == nil {
		msg.DestinationTransaction = &entity.Transaction{
			ID:        entity.TransactionID(chainID, hash),
			Hash:      hash,
			ChainID:   chainID,
			Status:    status,
			Timestamp: time.Now().UnixMilli(),
		}
	}
	return nil
}

// recompute re-derives the status and runs the transition side effects:
// persist, disable the scanner on terminal states, notify the registered
// update handler.
func (s *Service) recompute(id string) {
	s.mu.Lock()
	msg, ok := s.messages[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	old := msg.Status
	msg.Status = DeriveStatus(msg.SourceTransaction, msg.Events, msg.DestinationTransaction)
	changed := msg.Status != old
	snap := msg.Clone()
	handler := s.onUpdate
	s.mu.Unlock()

	s.persist()
	if !changed {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"message_id": id,
		"from":       old,
		"to":         snap.Status,
	}).Info("message status changed")
	if snap.Status.IsTerminal() {
		s.stopTracking(id)
	}
	if handler != nil {
		handler(id, snap)
	}
}

func (s *Service) startTracking(msg *entity.Message) {
	s.scanner.Enable(msg.ID, msg.DestinationChainID, msg.DestinationInitialBlock.Uint64())
	id := msg.ID
	s.timers.Start(timerID(id), s.interval, func() {
		s.RefreshMessage(id)
	})
}

func (s *Service) stopTracking(id string) {
	s.scanner.Disable(id)
	s.timers.Stop(timerID(id))
}

func (s *Service) persist() {
	s.mu.Lock()
	table := make(map[string]*entity.Message, len(s.messages))
	for id, msg := range s.messages {
		table[id] = msg.Clone()
	}
	s.mu.Unlock()

	if err := s.bucket.Save(s.ctx, table); err != nil {
		s.logger.WithError(err).Error("can't persist message table")
	}
}

func timerID(id string) string {
	return "message/" + id
}
