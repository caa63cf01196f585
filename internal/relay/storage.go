package relay

import "time"

// TransactionRecord is a persisted attempt of a transaction. Resubmissions append a new record
// linked through PreviousTransactionHash; existing hashes are never rewritten.
type TransactionRecord struct {
	TransactionID           string            `json:"transactionId"`
	TransactionType         TransactionType   `json:"transactionType"`
	TransactionHash         string            `json:"transactionHash,omitempty"`
	PreviousTransactionHash string            `json:"previousTransactionHash,omitempty"`
	Status                  TransactionStatus `json:"status"`
	RawTransaction          *RawTransaction   `json:"rawTransaction,omitempty"`
	GasPrice                string            `json:"gasPrice,omitempty"`
	ChainID                 uint64            `json:"chainId"`
	RelayerAddress          string            `json:"relayerAddress,omitempty"`
	RelayerManagerName      string            `json:"relayerManagerName,omitempty"`
	WalletAddress           string            `json:"walletAddress,omitempty"`
	Resubmitted             bool              `json:"resubmitted"`
	Receipt                 *Receipt          `json:"receipt,omitempty"`
	Error                   string            `json:"error,omitempty"`
	CreationTime            time.Time         `json:"creationTime"`
	UpdationTime            time.Time         `json:"updationTime"`
}

// RecordUpdate holds the fields to change on a record. Nil fields are left untouched.
type RecordUpdate struct {
	TransactionHash    *string
	Status             *TransactionStatus
	RawTransaction     *RawTransaction
	GasPrice           *string
	RelayerAddress     *string
	RelayerManagerName *string
	Resubmitted        *bool
	Receipt            *Receipt
	Error              *string
}

// Storage is the persistence store for transaction records
type Storage interface {
	SaveTransaction(record TransactionRecord) error
	UpdateByTransactionID(chainID uint64, transactionID string, update RecordUpdate) (found bool, err error)
	UpdateByTransactionIDAndHash(chainID uint64, transactionID, transactionHash string, update RecordUpdate) (found bool, err error)
	// GetByTransactionID returns all records of a transaction, most recent first.
	GetByTransactionID(chainID uint64, transactionID string) ([]TransactionRecord, error)
	Ping() error
	Close() error
}
