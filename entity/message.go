package entity

type MessageStatus string

const (
	MessageStatusFailed                  MessageStatus = "failed"
	MessageStatusRequested               MessageStatus = "requested"
	MessageStatusAwaitingCallMessageSent MessageStatus = "awaiting_call_message_sent"
	MessageStatusCallMessageSent         MessageStatus = "call_message_sent"
	MessageStatusCallMessage             MessageStatus = "call_message"
	MessageStatusCallExecuted            MessageStatus = "call_executed"
)

func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusCallExecuted || s == MessageStatusFailed
}

// Message is one logical one-directional cross-chain message, from a
// source transaction to its eventual execution on the destination chain.
// The id equals TransactionID of the source transaction.
type Message struct {
	ID                      string        `json:"id"`
	SourceChainID           string        `json:"source_chain_id"`
	DestinationChainID      string        `json:"destination_chain_id"`
	SourceTransaction       *Transaction  `json:"source_transaction"`
	DestinationTransaction  *Transaction  `json:"destination_transaction,omitempty"`
	Events                  EventMap      `json:"events"`
	Status                  MessageStatus `json:"status"`
	DestinationInitialBlock BigUint       `json:"destination_initial_block"`
}

// Sn returns the protocol sequence number once CallMessageSent has been
// observed, zero before that.
func (m *Message) Sn() uint64 {
	if e, ok := m.Events[EventCallMessageSent]; ok && e != nil {
		return e.Sn.Uint64()
	}
	return 0
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.SourceTransaction = m.SourceTransaction.Clone()
	c.DestinationTransaction = m.DestinationTransaction.Clone()
	c.Events = m.Events.Clone()
	return &c
}
