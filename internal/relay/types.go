package relay

import (
	"strings"
)

// TransactionType is the kind of request a transaction was relayed for.
type TransactionType string

const (
	TransactionTypeAA         TransactionType = "AA"
	TransactionTypeSCW        TransactionType = "SCW"
	TransactionTypeCrossChain TransactionType = "CROSS_CHAIN"
	TransactionTypeFunding    TransactionType = "FUNDING"
)

// TransactionStatus is the lifecycle status of a single on-chain hash of a transaction.
type TransactionStatus string

const (
	InProcess TransactionStatus = "IN_PROCESS"
	Pending   TransactionStatus = "PENDING"
	Success   TransactionStatus = "SUCCESS"
	Failed    TransactionStatus = "FAILED"
	Dropped   TransactionStatus = "DROPPED"
)

// EventType is the type of a lifecycle event published to the events queue.
type EventType string

const (
	EventTransactionHashGenerated EventType = "transactionHashGenerated"
	EventTransactionHashChanged   EventType = "transactionHashChanged"
	EventTransactionMined         EventType = "transactionMined"
	EventTransactionError         EventType = "error"
)

const (
	StateSuccess = "success"
	StateFailed  = "failed"
)

// RawTransaction is an unsigned EVM transaction. All wei amounts are 0x-prefixed integer hex strings.
type RawTransaction struct {
	From                 string `json:"from"`
	To                   string `json:"to"`
	Value                string `json:"value"`
	Data                 string `json:"data"`
	GasLimit             string `json:"gasLimit"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	ChainID              uint64 `json:"chainId"`
	Nonce                uint64 `json:"nonce"`
}

// IsDynamicFee reports whether the transaction is priced with EIP-1559 fee legs.
func (t RawTransaction) IsDynamicFee() bool {
	return t.MaxFeePerGas != "" && t.MaxPriorityFeePerGas != ""
}

// ExecutionResponse describes a transaction accepted by the network.
type ExecutionResponse struct {
	Hash                 string `json:"hash"`
	From                 string `json:"from"`
	Nonce                uint64 `json:"nonce"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// Receipt is the part of a transaction receipt the relayer cares about.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          uint64 `json:"status"`
	BlockNumber     uint64 `json:"blockNumber"`
	GasUsed         uint64 `json:"gasUsed"`
}

// TransactionData is the business payload of a transaction request.
type TransactionData struct {
	TransactionID string `json:"transactionId"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Data          string `json:"data"`
	GasLimit      string `json:"gasLimit"`
	Speed         string `json:"speed,omitempty"`
	WalletAddress string `json:"walletAddress"`
}

// TransactionMessage is what the submit adapter publishes to a chain's transaction queue.
type TransactionMessage struct {
	TransactionData
	Type    TransactionType `json:"type"`
	ChainID uint64          `json:"chainId"`
}

// RetryMessage is the delayed retry-check published by the listener after every broadcast.
type RetryMessage struct {
	TransactionID      string          `json:"transactionId"`
	TransactionHash    string          `json:"transactionHash"`
	TransactionType    TransactionType `json:"transactionType"`
	RelayerAddress     string          `json:"relayerAddress"`
	RelayerManagerName string          `json:"relayerManagerName"`
	WalletAddress      string          `json:"walletAddress"`
	RawTransaction     RawTransaction  `json:"rawTransaction"`
	// PreviousTransactionHashes are the replaced hashes of the transaction, oldest first.
	// Any of them can still be mined instead of TransactionHash.
	PreviousTransactionHashes []string `json:"previousTransactionHashes,omitempty"`
}

// History returns the previous hashes followed by the current one.
func (m RetryMessage) History() []string {
	hashes := make([]string, 0, len(m.PreviousTransactionHashes)+1)
	hashes = append(hashes, m.PreviousTransactionHashes...)
	return append(hashes, m.TransactionHash)
}

// Event is a lifecycle notification for clients and for the relayer manager.
type Event struct {
	TransactionID           string    `json:"transactionId"`
	Event                   EventType `json:"event"`
	RelayerManagerName      string    `json:"relayerManagerName"`
	RelayerAddress          string    `json:"relayerAddress,omitempty"`
	TransactionHash         string    `json:"transactionHash,omitempty"`
	PreviousTransactionHash string    `json:"previousTransactionHash,omitempty"`
	Receipt                 *Receipt  `json:"receipt,omitempty"`
	Error                   string    `json:"error,omitempty"`
}

// NotifyParams is handed to the transaction listener after every execution attempt.
type NotifyParams struct {
	ExecutionResponse       *ExecutionResponse
	TransactionID           string
	TransactionType         TransactionType
	RelayerAddress          string
	RelayerManagerName      string
	WalletAddress           string
	PreviousTransactionHash string
	// PreviousTransactionHashes holds every replaced hash, oldest first, PreviousTransactionHash last.
	PreviousTransactionHashes []string
	RawTransaction            RawTransaction
	Error                     string
}

// NotifyResult is returned by the listener before the transaction is confirmed.
type NotifyResult struct {
	IsTransactionRelayed bool
	ExecutionResponse    *ExecutionResponse
}

// Result is the tagged outcome of every public transaction service call.
type Result struct {
	State                string             `json:"state"`
	Code                 int                `json:"code"`
	TransactionID        string             `json:"transactionId"`
	TransactionHash      string             `json:"transactionHash,omitempty"`
	Error                string             `json:"error,omitempty"`
	IsTransactionRelayed bool               `json:"isTransactionRelayed"`
	ExecutionResponse    *ExecutionResponse `json:"transactionExecutionResponse,omitempty"`
}

// NormalizeAddress returns the canonical lowercase form of a hex address.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}
