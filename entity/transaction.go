package entity

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailure TxStatus = "failure"
)

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusSuccess || s == TxStatusFailure
}

// Transaction is a chain-local transaction observed on either side of a
// cross-chain message. It is mutated only by re-querying the chain adapter
// for its receipt, and never again once the status is terminal.
type Transaction struct {
	ID        string   `json:"id"`
	Hash      string   `json:"hash"`
	ChainID   string   `json:"chain_id"`
	Status    TxStatus `json:"status"`
	Timestamp int64    `json:"timestamp"`

	PendingMessage string `json:"pending_message,omitempty"`
	SuccessMessage string `json:"success_message,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}

// TransactionID builds the deterministic chain-scoped transaction id used
// to key messages and transfers, enabling idempotent lookups after reload.
func TransactionID(chainID, hash string) string {
	return chainID + "/" + hash
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
