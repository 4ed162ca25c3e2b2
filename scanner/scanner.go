package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/timer"
)

// State is the cursor of one destination-chain scanner. CurrentHeight is
// the next block to scan and never exceeds ChainHeight. ChainHeight is
// the last observed chain head, not guaranteed monotonic.
type State struct {
	ID               string
	ChainID          string
	Enabled          bool
	IsScanning       bool
	StartBlockHeight uint64
	CurrentHeight    uint64
	ChainHeight      uint64
}

// Service incrementally discovers destination-chain protocol events, one
// block per tick per scanner, without ever rescanning a recorded block.
type Service struct {
	ctx      context.Context
	adapters *chainconn.Registry
	timers   *timer.Registry
	logger   logging.Logger
	interval time.Duration

	mu       sync.Mutex
	scanners map[string]*State
	// events is keyed by chain id, then block height. A present (possibly
	// empty) slice marks the block as scanned; empty blocks are recorded
	// on purpose so they are not refetched forever.
	events map[string]map[uint64][]*entity.Event
}

func New(ctx context.Context, adapters *chainconn.Registry, timers *timer.Registry, logger logging.Logger, interval time.Duration) *Service {
	return &Service{
		ctx:      ctx,
		adapters: adapters,
		timers:   timers,
		logger:   logger,
		interval: interval,
		scanners: make(map[string]*State),
		events:   make(map[string]map[uint64][]*entity.Event),
	}
}

// Enable (re)initializes the scanner for id and schedules its polling
// timer. Idempotent: calling it again resets the cursor to startHeight.
func (s *Service) Enable(id, chainID string, startHeight uint64) {
	s.mu.Lock()
	s.scanners[id] = &State{
		ID:               id,
		ChainID:          chainID,
		Enabled:          true,
		StartBlockHeight: startHeight,
		CurrentHeight:    startHeight,
		ChainHeight:      startHeight,
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"scanner_id":   id,
		"chain_id":     chainID,
		"start_height": startHeight,
	}).Info("enabling event scanner")
	s.timers.Start(timerID(id), s.interval, func() {
		s.Poll(id)
	})
}

// Disable stops the scanner's timer and resets its heights to zero.
// Terminal for the id unless Enable is called again.
func (s *Service) Disable(id string) {
	s.timers.Stop(timerID(id))
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scanners[id]
	if !ok {
		return
	}
	st.Enabled = false
	st.StartBlockHeight = 0
	st.CurrentHeight = 0
	st.ChainHeight = 0
	s.logger.WithField("scanner_id", id).Info("disabled event scanner")
}

func (s *Service) Scanner(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scanners[id]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Poll runs one scan tick: scan the current block, refresh the chain
// head, advance the cursor by one if the block got recorded. Overlapping
// ticks for the same scanner are dropped, not queued. Errors are logged
// and the same height is retried on the next tick.
func (s *Service) Poll(id string) {
	s.mu.Lock()
	st, ok := s.scanners[id]
	if !ok || !st.Enabled || st.IsScanning {
		s.mu.Unlock()
		return
	}
	st.IsScanning = true
	chainID, height := st.ChainID, st.CurrentHeight
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if st, ok := s.scanners[id]; ok {
			st.IsScanning = false
		}
		s.mu.Unlock()
	}()

	if err := s.ScanBlock(s.ctx, chainID, height); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"scanner_id":   id,
			"chain_id":     chainID,
			"block_height": height,
		}).Error("failed to scan block, retrying next tick")
		return
	}
	s.RefreshChainHeight(s.ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok = s.scanners[id]
	if ok && st.Enabled && st.CurrentHeight == height && st.CurrentHeight < st.ChainHeight && s.blockScanned(chainID, height) {
		st.CurrentHeight++
		CurrentHeightGauge.WithLabelValues(id, chainID).Set(float64(st.CurrentHeight))
	}
}

// ScanBlock queries all destination-side events at the given block and
// records them. A block already present in the event map is never
// refetched, even if the chain would return different data now.
func (s *Service) ScanBlock(ctx context.Context, chainID string, height uint64) error {
	s.mu.Lock()
	if s.blockScanned(chainID, height) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	adapter, err := s.adapters.Get(chainID)
	if err != nil {
		return err
	}
	events, err := adapter.DestinationEventsByBlock(ctx, height)
	if err != nil {
		return fmt.Errorf("can't fetch events at block %d: %w", height, err)
	}
	for _, e := range events {
		if e.DestinationChainID == "" {
			e.DestinationChainID = chainID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockScanned(chainID, height) {
		return nil
	}
	byBlock, ok := s.events[chainID]
	if !ok {
		byBlock = make(map[uint64][]*entity.Event)
		s.events[chainID] = byBlock
	}
	if events == nil {
		events = []*entity.Event{}
	}
	byBlock[height] = events
	ScannedBlocks.WithLabelValues(chainID).Inc()
	if len(events) > 0 {
		s.logger.WithFields(logrus.Fields{
			"chain_id":     chainID,
			"block_height": height,
			"count":        len(events),
		}).Info("recorded protocol events")
	}
	return nil
}

// RefreshChainHeight re-queries the chain head for the scanner's chain.
// The stored value is "last observed": a lagging node may legitimately
// move it backwards and the cursor logic tolerates that.
func (s *Service) RefreshChainHeight(ctx context.Context, id string) {
	s.mu.Lock()
	st, ok := s.scanners[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	chainID := st.ChainID
	s.mu.Unlock()

	adapter, err := s.adapters.Get(chainID)
	if err != nil {
		s.logger.WithError(err).WithField("scanner_id", id).Error("can't refresh chain height")
		return
	}
	height, err := adapter.BlockHeight(ctx)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"scanner_id": id,
			"chain_id":   chainID,
		}).Error("can't fetch chain height")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.scanners[id]; ok {
		st.ChainHeight = height
		ChainHeightGauge.WithLabelValues(id, chainID).Set(float64(height))
	}
}

// DestinationEvents correlates all scanned events of one chain with the
// given sequence number. First pass collects by sn; if a CallMessage was
// found, a second pass merges in every event sharing its request id,
// since events after CallMessage may carry only the reqId. Last write
// wins per event type across blocks.
func (s *Service) DestinationEvents(chainID string, sn uint64) entity.EventMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	byBlock, ok := s.events[chainID]
	if !ok {
		return entity.EventMap{}
	}
	heights := make([]uint64, 0, len(byBlock))
	for h := range byBlock {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	found := entity.EventMap{}
	for _, h := range heights {
		for _, e := range byBlock[h] {
			if e.Sn.Uint64() == sn && sn != 0 {
				ev := *e
				found[e.Type] = &ev
			}
		}
	}
	callMessage, ok := found[entity.EventCallMessage]
	if !ok {
		return found
	}
	// zero means unknown, same as the sn guard above: matching on it
	// would pull in source-side events of unrelated messages, which
	// never carry a request id
	reqID := callMessage.ReqID.Uint64()
	if reqID == 0 {
		return found
	}
	for _, h := range heights {
		for _, e := range byBlock[h] {
			if e.ReqID.Uint64() == reqID {
				ev := *e
				found[e.Type] = &ev
			}
		}
	}
	return found
}

func (s *Service) blockScanned(chainID string, height uint64) bool {
	byBlock, ok := s.events[chainID]
	if !ok {
		return false
	}
	_, ok = byBlock[height]
	return ok
}

func timerID(id string) string {
	return "scanner/" + id
}
