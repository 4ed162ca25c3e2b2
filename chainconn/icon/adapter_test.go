package icon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/xcall-tracker/entity"
)

const xcallScore = "cxa07f426062a1384bdd762afa6a87d123fbc81c75"

func TestDecodeEventLog(t *testing.T) {
	t.Parallel()
	a := &Adapter{chainID: "icon", xcall: xcallScore}

	for _, test := range []struct {
		Name     string
		Log      *EventLog
		Expected *entity.Event
	}{
		{
			Name: "CallMessageSent",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"CallMessageSent(Address,str,int)", "hx1", "0x2.bsc/0xabc", "0x5"},
			},
			Expected: &entity.Event{Type: entity.EventCallMessageSent, Sn: 5, TxHash: "0xaaa"},
		},
		{
			Name: "CallMessage",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"CallMessage(str,str,int,int,bytes)", "0x2.bsc/0xabc", "cx3", "0x5"},
				Data:         []string{"0x9"},
			},
			Expected: &entity.Event{Type: entity.EventCallMessage, Sn: 5, ReqID: 9, TxHash: "0xaaa"},
		},
		{
			Name: "CallExecuted success",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"CallExecuted(int,int,str)", "0x9"},
				Data:         []string{"0x1", "success"},
			},
			Expected: &entity.Event{Type: entity.EventCallExecuted, ReqID: 9, Success: true, TxHash: "0xaaa"},
		},
		{
			Name: "CallExecuted failure",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"CallExecuted(int,int,str)", "0x9"},
				Data:         []string{"0x0", "reverted"},
			},
			Expected: &entity.Event{Type: entity.EventCallExecuted, ReqID: 9, TxHash: "0xaaa"},
		},
		{
			Name: "ResponseMessage",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"ResponseMessage(int,int)", "0x5"},
				Data:         []string{"0x1"},
			},
			Expected: &entity.Event{Type: entity.EventResponseMessage, Sn: 5, Success: true, TxHash: "0xaaa"},
		},
		{
			Name: "RollbackMessage",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"RollbackMessage(int)", "0x5"},
			},
			Expected: &entity.Event{Type: entity.EventRollbackMessage, Sn: 5, TxHash: "0xaaa"},
		},
		{
			Name: "RollbackExecuted",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"RollbackExecuted(int)", "0x5"},
			},
			Expected: &entity.Event{Type: entity.EventRollbackExecuted, Sn: 5, TxHash: "0xaaa"},
		},
		{
			Name: "Other contract",
			Log: &EventLog{
				ScoreAddress: "cxother",
				Indexed:      []string{"CallMessageSent(Address,str,int)", "hx1", "0x2.bsc/0xabc", "0x5"},
			},
			Expected: nil,
		},
		{
			Name: "Unknown signature",
			Log: &EventLog{
				ScoreAddress: xcallScore,
				Indexed:      []string{"Transfer(Address,Address,int)", "hx1", "hx2", "0x5"},
			},
			Expected: nil,
		},
		{
			Name:     "No indexed values",
			Log:      &EventLog{ScoreAddress: xcallScore},
			Expected: nil,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, test.Expected, a.decodeEventLog(test.Log, "0xaaa"))
		})
	}
}

func TestDeriveTxStatus(t *testing.T) {
	t.Parallel()
	a := &Adapter{chainID: "icon"}

	require.Equal(t, entity.TxStatusPending, a.DeriveTxStatus(nil))
	require.Equal(t, entity.TxStatusSuccess, a.DeriveTxStatus(&TxResult{Status: "0x1"}))
	require.Equal(t, entity.TxStatusFailure, a.DeriveTxStatus(&TxResult{Status: "0x0"}))
}

func TestTxEventLogsFiltersByContract(t *testing.T) {
	t.Parallel()
	a := &Adapter{chainID: "icon", xcall: xcallScore}

	events := a.TxEventLogs(&TxResult{
		Status: "0x1",
		TxHash: "0xaaa",
		EventLogs: []EventLog{
			{ScoreAddress: xcallScore, Indexed: []string{"CallMessageSent(Address,str,int)", "hx1", "net/0xabc", "0x5"}},
			{ScoreAddress: "cxother", Indexed: []string{"CallMessageSent(Address,str,int)", "hx1", "net/0xabc", "0x6"}},
		},
	})
	require.Len(t, events, 1)
	require.Equal(t, uint64(5), events[0].Sn.Uint64())
}
