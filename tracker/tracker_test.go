package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/chainconn/chainconntest"
	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/scanner"
	"github.com/balancednetwork/xcall-tracker/storage"
	"github.com/balancednetwork/xcall-tracker/timer"
	"github.com/balancednetwork/xcall-tracker/tracker"
)

type fixture struct {
	src     *chainconntest.Adapter
	dest    *chainconntest.Adapter
	scanner *scanner.Service
	timers  *timer.Registry
	store   *storage.MemoryStore
	svc     *tracker.Service
}

// newFixture wires a tracker over two fake chains. The hour-long poll
// interval keeps the registry timers quiet; tests call RefreshMessage to
// drive ticks deterministically.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src:    chainconntest.New("arbitrum"),
		dest:   chainconntest.New("icon"),
		timers: timer.NewRegistry(logging.New()),
		store:  storage.NewMemoryStore(),
	}
	t.Cleanup(f.timers.StopAll)

	ctx := context.Background()
	logger := logging.New()
	adapters := chainconn.NewRegistry(f.src, f.dest)
	f.scanner = scanner.New(ctx, adapters, f.timers, logger, time.Hour)
	f.svc = tracker.New(ctx, adapters, f.scanner, f.timers,
		storage.NewBucket(f.store, "messages", 1, logger), logger, time.Hour)
	return f
}

func newMessage(initialBlock uint64) *entity.Message {
	srcTx := &entity.Transaction{
		ID:        entity.TransactionID("arbitrum", "0xabc"),
		Hash:      "0xabc",
		ChainID:   "arbitrum",
		Status:    entity.TxStatusPending,
		Timestamp: time.Now().UnixMilli(),
	}
	return &entity.Message{
		ID:                      srcTx.ID,
		SourceChainID:           "arbitrum",
		DestinationChainID:      "icon",
		SourceTransaction:       srcTx,
		Events:                  entity.EventMap{},
		DestinationInitialBlock: entity.BigUint(initialBlock),
	}
}

func TestAddDerivesInitialStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg := newMessage(95)
	f.svc.Add(msg)

	got, ok := f.svc.Get(msg.ID)
	require.True(t, ok)
	require.Equal(t, entity.MessageStatusRequested, got.Status)
	require.True(t, f.timers.Active("message/"+msg.ID))

	st, ok := f.scanner.Scanner(msg.ID)
	require.True(t, ok)
	require.True(t, st.Enabled)
	require.Equal(t, uint64(95), st.StartBlockHeight)
}

func TestAddTerminalMessageSkipsTracking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg := newMessage(95)
	msg.SourceTransaction.Status = entity.TxStatusFailure
	var updates []*entity.Message
	f.svc.SetUpdateHandler(func(_ string, m *entity.Message) {
		updates = append(updates, m)
	})
	f.svc.Add(msg)

	got, ok := f.svc.Get(msg.ID)
	require.True(t, ok)
	require.Equal(t, entity.MessageStatusFailed, got.Status)

	// no timer and no scanner for a message that is already done, but the
	// owner is still told about it
	require.False(t, f.timers.Active("message/"+msg.ID))
	_, ok = f.scanner.Scanner(msg.ID)
	require.False(t, ok)
	require.Len(t, updates, 1)
	require.Equal(t, entity.MessageStatusFailed, updates[0].Status)
}

func TestRefreshMessageSourceProgression(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg := newMessage(95)
	f.svc.Add(msg)

	// receipt not available yet, nothing moves
	f.svc.RefreshMessage(msg.ID)
	got, _ := f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusRequested, got.Status)

	// confirmed receipt carrying the CallMessageSent log moves the
	// message forward twice within one tick
	f.src.SetReceipt(&chainconntest.Receipt{
		Hash:   "0xabc",
		Status: entity.TxStatusSuccess,
		Events: []*entity.Event{
			{Type: entity.EventCallMessageSent, Sn: 5, TxHash: "0xabc"},
		},
	})
	f.svc.RefreshMessage(msg.ID)
	got, _ = f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusCallMessageSent, got.Status)
	require.Equal(t, entity.TxStatusSuccess, got.SourceTransaction.Status)
	require.Equal(t, uint64(5), got.Sn())
}

func TestRefreshMessageFailedSource(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	msg := newMessage(95)
	var updates []*entity.Message
	f.svc.SetUpdateHandler(func(_ string, m *entity.Message) {
		updates = append(updates, m)
	})
	f.svc.Add(msg)

	f.src.SetReceipt(&chainconntest.Receipt{Hash: "0xabc", Status: entity.TxStatusFailure})
	f.svc.RefreshMessage(msg.ID)

	got, _ := f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusFailed, got.Status)
	require.False(t, f.timers.Active("message/"+msg.ID))
	require.Len(t, updates, 1)
	require.Equal(t, entity.MessageStatusFailed, updates[0].Status)
}

func TestRefreshMessageDestinationCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	msg := newMessage(95)
	msg.SourceTransaction.Status = entity.TxStatusSuccess
	msg.Events = entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5, TxHash: "0xabc"},
	}
	var updates []*entity.Message
	f.svc.SetUpdateHandler(func(_ string, m *entity.Message) {
		updates = append(updates, m)
	})
	f.svc.Add(msg)
	got, _ := f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusCallMessageSent, got.Status)

	f.dest.SetBlockEvents(95, []*entity.Event{
		{Type: entity.EventCallMessage, Sn: 5, ReqID: 9, TxHash: "0x111"},
	})
	f.dest.SetBlockEvents(96, []*entity.Event{
		{Type: entity.EventCallExecuted, ReqID: 9, Success: true, TxHash: "0xdef"},
	})
	f.dest.SetReceipt(&chainconntest.Receipt{Hash: "0xdef", Status: entity.TxStatusSuccess})
	require.NoError(t, f.scanner.ScanBlock(ctx, "icon", 95))
	require.NoError(t, f.scanner.ScanBlock(ctx, "icon", 96))

	f.svc.RefreshMessage(msg.ID)

	got, _ = f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusCallExecuted, got.Status)
	require.NotNil(t, got.DestinationTransaction)
	require.Equal(t, "0xdef", got.DestinationTransaction.Hash)
	require.Equal(t, entity.TransactionID("icon", "0xdef"), got.DestinationTransaction.ID)

	// terminal messages stop their timer and scanner
	require.False(t, f.timers.Active("message/"+msg.ID))
	st, _ := f.scanner.Scanner(msg.ID)
	require.False(t, st.Enabled)

	require.NotEmpty(t, updates)
	require.Equal(t, entity.MessageStatusCallExecuted, updates[len(updates)-1].Status)
}

func TestCallExecutedWaitsForDestinationReceipt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	msg := newMessage(95)
	msg.SourceTransaction.Status = entity.TxStatusSuccess
	msg.Events = entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5, TxHash: "0xabc"},
	}
	f.svc.Add(msg)

	f.dest.SetBlockEvents(95, []*entity.Event{
		{Type: entity.EventCallMessage, Sn: 5, ReqID: 9, TxHash: "0x111"},
		{Type: entity.EventCallExecuted, ReqID: 9, Success: true, TxHash: "0xdef"},
	})
	require.NoError(t, f.scanner.ScanBlock(ctx, "icon", 95))

	// execution log seen but the destination receipt is still pending
	f.svc.RefreshMessage(msg.ID)
	got, _ := f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusCallMessage, got.Status)
	require.Nil(t, got.DestinationTransaction)
	require.True(t, f.timers.Active("message/"+msg.ID))

	f.dest.SetReceipt(&chainconntest.Receipt{Hash: "0xdef", Status: entity.TxStatusSuccess})
	f.svc.RefreshMessage(msg.ID)
	got, _ = f.svc.Get(msg.ID)
	require.Equal(t, entity.MessageStatusCallExecuted, got.Status)
}

func TestLoadAndResume(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pending := newMessage(95)
	f.svc.Add(pending)

	// second service over the same store simulates a restart
	logger := logging.New()
	adapters := chainconn.NewRegistry(f.src, f.dest)
	timers := timer.NewRegistry(logger)
	t.Cleanup(timers.StopAll)
	sc := scanner.New(ctx, adapters, timers, logger, time.Hour)
	restarted := tracker.New(ctx, adapters, sc, timers,
		storage.NewBucket(f.store, "messages", 1, logger), logger, time.Hour)

	require.NoError(t, restarted.Load(ctx))
	got, ok := restarted.Get(pending.ID)
	require.True(t, ok)
	require.Equal(t, entity.MessageStatusRequested, got.Status)
	require.False(t, timers.Active("message/"+pending.ID))

	restarted.Resume()
	require.True(t, timers.Active("message/"+pending.ID))
	st, ok := sc.Scanner(pending.ID)
	require.True(t, ok)
	require.True(t, st.Enabled)
	require.Equal(t, uint64(95), st.StartBlockHeight)
}
