package presenter

import "github.com/balancednetwork/xcall-tracker/entity"

type TransactionInfo struct {
	Hash      string          `json:"hash"`
	ChainID   string          `json:"chain_id"`
	Status    entity.TxStatus `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

type MessageInfo struct {
	ID                     string               `json:"id"`
	SourceChainID          string               `json:"source_chain_id"`
	DestinationChainID     string               `json:"destination_chain_id"`
	Status                 entity.MessageStatus `json:"status"`
	Description            string               `json:"description"`
	SourceTransaction      *TransactionInfo     `json:"source_transaction,omitempty"`
	DestinationTransaction *TransactionInfo     `json:"destination_transaction,omitempty"`
}

type TransferInfo struct {
	ID                      string                `json:"id"`
	Type                    entity.TransferType   `json:"type"`
	Status                  entity.TransferStatus `json:"status"`
	SourceChainID           string                `json:"source_chain_id"`
	FinalDestinationChainID string                `json:"final_destination_chain_id"`
	Amount                  string                `json:"amount,omitempty"`
	Attributes              map[string]string     `json:"attributes,omitempty"`
	PrimaryMessage          *MessageInfo          `json:"primary_message,omitempty"`
	SecondaryMessage        *MessageInfo          `json:"secondary_message,omitempty"`
}

type HealthInfo struct {
	Status string   `json:"status"`
	Chains []string `json:"chains"`
}
