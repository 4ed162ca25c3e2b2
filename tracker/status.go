package tracker

import (
	"fmt"

	"github.com/balancednetwork/xcall-tracker/entity"
)

// DeriveStatus computes a message status from the source transaction, the
// accumulated protocol events and the destination transaction, if any.
// Pure function; first matching rule wins:
//
//  1. no source transaction               -> failed
//  2. source pending                      -> requested
//  3. source failed                       -> failed
//  4. source succeeded:
//     CallExecuted(success) + successful
//     destination transaction            -> call_executed
//     CallMessage observed               -> call_message
//     CallMessageSent observed           -> call_message_sent
//     otherwise                          -> awaiting_call_message_sent
//  5. anything else                       -> failed
func DeriveStatus(src *entity.Transaction, events entity.EventMap, dest *entity.Transaction) entity.MessageStatus {
	if src == nil {
		return entity.MessageStatusFailed
	}
	switch src.Status {
	case entity.TxStatusPending:
		return entity.MessageStatusRequested
	case entity.TxStatusFailure:
		return entity.MessageStatusFailed
	case entity.TxStatusSuccess:
		if e, ok := events[entity.EventCallExecuted]; ok && e.Success && dest != nil && dest.Status == entity.TxStatusSuccess {
			return entity.MessageStatusCallExecuted
		}
		if _, ok := events[entity.EventCallMessage]; ok {
			return entity.MessageStatusCallMessage
		}
		if _, ok := events[entity.EventCallMessageSent]; ok {
			return entity.MessageStatusCallMessageSent
		}
		return entity.MessageStatusAwaitingCallMessageSent
	}
	return entity.MessageStatusFailed
}

// StatusDescription renders the user-facing progress line for a message.
// chainNames maps chain ids to display names; unknown ids fall back to
// the raw id.
func StatusDescription(msg *entity.Message, chainNames map[string]string) string {
	name := func(chainID string) string {
		if n, ok := chainNames[chainID]; ok {
			return n
		}
		return chainID
	}
	switch msg.Status {
	case entity.MessageStatusRequested:
		return fmt.Sprintf("Awaiting confirmation on %s...", name(msg.SourceChainID))
	case entity.MessageStatusAwaitingCallMessageSent:
		return fmt.Sprintf("Verifying transaction on %s...", name(msg.SourceChainID))
	case entity.MessageStatusCallMessageSent:
		return fmt.Sprintf("Finalising transaction on %s...", name(msg.SourceChainID))
	case entity.MessageStatusCallMessage:
		return fmt.Sprintf("Confirming transaction on %s...", name(msg.DestinationChainID))
	case entity.MessageStatusCallExecuted:
		return "Complete."
	case entity.MessageStatusFailed:
		return "Transfer failed."
	default:
		return "Unknown state."
	}
}
