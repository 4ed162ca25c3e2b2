package tracker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/xcall-tracker/entity"
	"github.com/balancednetwork/xcall-tracker/tracker"
)

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	srcPending := &entity.Transaction{Status: entity.TxStatusPending}
	srcSuccess := &entity.Transaction{Status: entity.TxStatusSuccess}
	srcFailure := &entity.Transaction{Status: entity.TxStatusFailure}
	destSuccess := &entity.Transaction{Status: entity.TxStatusSuccess}
	destPending := &entity.Transaction{Status: entity.TxStatusPending}

	callMessageSent := entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
	}
	callMessage := entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
		entity.EventCallMessage:     {Type: entity.EventCallMessage, Sn: 5, ReqID: 9},
	}
	callExecuted := entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
		entity.EventCallMessage:     {Type: entity.EventCallMessage, Sn: 5, ReqID: 9},
		entity.EventCallExecuted:    {Type: entity.EventCallExecuted, ReqID: 9, Success: true},
	}
	callExecutedFailed := entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
		entity.EventCallMessage:     {Type: entity.EventCallMessage, Sn: 5, ReqID: 9},
		entity.EventCallExecuted:    {Type: entity.EventCallExecuted, ReqID: 9, Success: false},
	}

	for _, test := range []struct {
		Name     string
		Src      *entity.Transaction
		Events   entity.EventMap
		Dest     *entity.Transaction
		Expected entity.MessageStatus
	}{
		{
			Name:     "No source transaction",
			Expected: entity.MessageStatusFailed,
		},
		{
			Name:     "Source pending",
			Src:      srcPending,
			Events:   entity.EventMap{},
			Expected: entity.MessageStatusRequested,
		},
		{
			Name:     "Source failed",
			Src:      srcFailure,
			Events:   callMessageSent,
			Expected: entity.MessageStatusFailed,
		},
		{
			Name:     "Source confirmed, no events yet",
			Src:      srcSuccess,
			Events:   entity.EventMap{},
			Expected: entity.MessageStatusAwaitingCallMessageSent,
		},
		{
			Name:     "CallMessageSent observed",
			Src:      srcSuccess,
			Events:   callMessageSent,
			Expected: entity.MessageStatusCallMessageSent,
		},
		{
			Name:     "CallMessage observed",
			Src:      srcSuccess,
			Events:   callMessage,
			Expected: entity.MessageStatusCallMessage,
		},
		{
			Name:     "CallExecuted without destination transaction",
			Src:      srcSuccess,
			Events:   callExecuted,
			Expected: entity.MessageStatusCallMessage,
		},
		{
			Name:     "CallExecuted with pending destination transaction",
			Src:      srcSuccess,
			Events:   callExecuted,
			Dest:     destPending,
			Expected: entity.MessageStatusCallMessage,
		},
		{
			Name:     "CallExecuted with successful destination transaction",
			Src:      srcSuccess,
			Events:   callExecuted,
			Dest:     destSuccess,
			Expected: entity.MessageStatusCallExecuted,
		},
		{
			Name:     "Unsuccessful CallExecuted does not complete",
			Src:      srcSuccess,
			Events:   callExecutedFailed,
			Dest:     destSuccess,
			Expected: entity.MessageStatusCallMessage,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, test.Expected, tracker.DeriveStatus(test.Src, test.Events, test.Dest))
		})
	}
}

func TestStatusDescription(t *testing.T) {
	t.Parallel()

	names := map[string]string{"icon": "ICON", "arbitrum": "Arbitrum"}
	msg := &entity.Message{
		SourceChainID:      "arbitrum",
		DestinationChainID: "icon",
	}

	for _, test := range []struct {
		Status   entity.MessageStatus
		Expected string
	}{
		{entity.MessageStatusRequested, "Awaiting confirmation on Arbitrum..."},
		{entity.MessageStatusAwaitingCallMessageSent, "Verifying transaction on Arbitrum..."},
		{entity.MessageStatusCallMessageSent, "Finalising transaction on Arbitrum..."},
		{entity.MessageStatusCallMessage, "Confirming transaction on ICON..."},
		{entity.MessageStatusCallExecuted, "Complete."},
		{entity.MessageStatusFailed, "Transfer failed."},
	} {
		msg := msg.Clone()
		msg.Status = test.Status
		require.Equal(t, test.Expected, tracker.StatusDescription(msg, names))
	}

	require.Equal(t, "Awaiting confirmation on unmapped...",
		tracker.StatusDescription(&entity.Message{SourceChainID: "unmapped", Status: entity.MessageStatusRequested}, names))
}
