package entity

type TransferType string

const (
	TransferBridge             TransferType = "bridge"
	TransferSwap               TransferType = "swap"
	TransferDepositCollateral  TransferType = "deposit_collateral"
	TransferWithdrawCollateral TransferType = "withdraw_collateral"
	TransferBorrow             TransferType = "borrow"
	TransferRepay              TransferType = "repay"
)

type TransferStatus string

const (
	TransferStatusPending TransferStatus = "pending"
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusFailure TransferStatus = "failure"
)

func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusSuccess || s == TransferStatusFailure
}

// Transfer is one user-facing cross-chain action. It references its
// messages by id through the tracker, never by pointer; messages outlive
// the transfer record if the latter is removed independently.
type Transfer struct {
	ID                       string         `json:"id"`
	Type                     TransferType   `json:"type"`
	Status                   TransferStatus `json:"status"`
	PrimaryMessageID         string         `json:"primary_message_id"`
	SecondaryMessageID       string         `json:"secondary_message_id,omitempty"`
	SecondaryMessageRequired bool           `json:"secondary_message_required"`
	SourceChainID            string         `json:"source_chain_id"`
	FinalDestinationChainID  string         `json:"final_destination_chain_id"`
	// FinalDestinationInitialBlock is captured before the source
	// transaction is even submitted, so the secondary leg's scanner has
	// its lower bound ready the instant the primary leg completes.
	FinalDestinationInitialBlock BigUint           `json:"final_destination_initial_block"`
	Amount                       *CurrencyAmount   `json:"amount,omitempty"`
	Attributes                   map[string]string `json:"attributes,omitempty"`
}

func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	c := *t
	c.Amount = t.Amount.Clone()
	if t.Attributes != nil {
		c.Attributes = make(map[string]string, len(t.Attributes))
		for k, v := range t.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
