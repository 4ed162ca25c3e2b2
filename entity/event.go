package entity

type EventType string

const (
	EventCallMessageSent  EventType = "CallMessageSent"
	EventCallMessage      EventType = "CallMessage"
	EventCallExecuted     EventType = "CallExecuted"
	EventResponseMessage  EventType = "ResponseMessage"
	EventRollbackMessage  EventType = "RollbackMessage"
	EventRollbackExecuted EventType = "RollbackExecuted"
)

// Event is one protocol log emission. Sn is assigned at the origin and is
// valid for correlation across the whole message lifetime; ReqID is
// assigned by the destination chain and is only valid from CallMessage
// onwards.
type Event struct {
	Type               EventType `json:"type"`
	Sn                 BigUint   `json:"sn,omitempty"`
	ReqID              BigUint   `json:"req_id,omitempty"`
	Success            bool      `json:"success,omitempty"`
	SourceChainID      string    `json:"source_chain_id,omitempty"`
	DestinationChainID string    `json:"destination_chain_id,omitempty"`
	TxHash             string    `json:"tx_hash,omitempty"`
}

// EventMap holds at most one event per type, last write wins.
type EventMap map[EventType]*Event

func (m EventMap) Clone() EventMap {
	if m == nil {
		return nil
	}
	c := make(EventMap, len(m))
	for k, v := range m {
		e := *v
		c[k] = &e
	}
	return c
}

// Merge overwrites per event type and returns whether anything changed.
func (m EventMap) Merge(other EventMap) bool {
	changed := false
	for k, v := range other {
		if v == nil {
			continue
		}
		if prev, ok := m[k]; !ok || *prev != *v {
			e := *v
			m[k] = &e
			changed = true
		}
	}
	return changed
}
