package transaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bcnmy/relayer-node/internal/gasprice"
	"github.com/bcnmy/relayer-node/internal/relay"
)

// toTransaction converts a raw transaction into an unsigned go-ethereum transaction. Dynamic fee
// raw transactions become EIP-1559 transactions, everything else a legacy one.
func toTransaction(raw relay.RawTransaction) (*types.Transaction, error) {
	if !common.IsHexAddress(raw.To) {
		return nil, fmt.Errorf("invalid to address %q", raw.To)
	}
	to := common.HexToAddress(raw.To)

	value := new(big.Int)
	if raw.Value != "" {
		v, err := gasprice.ParseWei(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse value: %w", err)
		}
		value = v
	}

	gasLimit, err := gasprice.ParseWei(raw.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gas limit: %w", err)
	}
	if !gasLimit.IsUint64() {
		return nil, fmt.Errorf("gas limit %s out of range", gasLimit)
	}

	var data []byte
	if raw.Data != "" && raw.Data != "0x" {
		data, err = hexutil.Decode(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data: %w", err)
		}
	}

	price, err := gasprice.FromRawTransaction(raw)
	if err != nil {
		return nil, err
	}

	if price.IsDynamicFee() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(raw.ChainID),
			Nonce:     raw.Nonce,
			GasTipCap: price.MaxPriorityFeePerGas,
			GasFeeCap: price.MaxFeePerGas,
			Gas:       gasLimit.Uint64(),
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    raw.Nonce,
		GasPrice: price.GasPrice,
		Gas:      gasLimit.Uint64(),
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

func executionResponse(hash string, raw relay.RawTransaction) *relay.ExecutionResponse {
	return &relay.ExecutionResponse{
		Hash:                 hash,
		From:                 raw.From,
		Nonce:                raw.Nonce,
		GasPrice:             raw.GasPrice,
		MaxFeePerGas:         raw.MaxFeePerGas,
		MaxPriorityFeePerGas: raw.MaxPriorityFeePerGas,
	}
}
