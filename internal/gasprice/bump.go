package gasprice

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// minBumpPercent is the replacement fee increase nodes require to accept a replacement.
const minBumpPercent = 10

var errInvalidPrice = errors.New("invalid past gas price")

// BumpGasPrice raises every leg of past by bumpPercent, and by at least ten percent
// rounded up, so the result always replaces past.
func BumpGasPrice(past Price, bumpPercent uint64) (Price, error) {
	if past.IsDynamicFee() {
		maxFee, err := bumpWei(past.MaxFeePerGas, bumpPercent)
		if err != nil {
			return Price{}, fmt.Errorf("failed to bump maxFeePerGas: %w", err)
		}
		tip, err := bumpWei(past.MaxPriorityFeePerGas, bumpPercent)
		if err != nil {
			return Price{}, fmt.Errorf("failed to bump maxPriorityFeePerGas: %w", err)
		}
		return DynamicPrice(maxFee, tip), nil
	}

	gasPrice, err := bumpWei(past.GasPrice, bumpPercent)
	if err != nil {
		return Price{}, fmt.Errorf("failed to bump gasPrice: %w", err)
	}
	return LegacyPrice(gasPrice), nil
}

func bumpWei(past *big.Int, bumpPercent uint64) (*big.Int, error) {
	if past == nil || past.Sign() < 0 {
		return nil, errInvalidPrice
	}
	p, overflow := uint256.FromBig(past)
	if overflow {
		return nil, errInvalidPrice
	}

	hundred := uint256.NewInt(100)

	// candidate = p * (100 + bump) / 100
	candidate, overflow := new(uint256.Int).MulOverflow(p, uint256.NewInt(100+bumpPercent))
	if overflow {
		return nil, errInvalidPrice
	}
	candidate.Div(candidate, hundred)

	// threshold = ceil(p * (100 + minBump) / 100)
	threshold, overflow := new(uint256.Int).MulOverflow(p, uint256.NewInt(100+minBumpPercent))
	if overflow {
		return nil, errInvalidPrice
	}
	if _, overflow = threshold.AddOverflow(threshold, uint256.NewInt(99)); overflow {
		return nil, errInvalidPrice
	}
	threshold.Div(threshold, hundred)

	if candidate.Lt(threshold) {
		return threshold.ToBig(), nil
	}
	return candidate.ToBig(), nil
}
