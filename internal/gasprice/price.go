package gasprice

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bcnmy/relayer-node/internal/relay"
)

// Tier selects one of the cached price levels of a chain.
type Tier string

const (
	TierDefault Tier = "DEFAULT"
	TierMedium  Tier = "MEDIUM"
	TierFast    Tier = "FAST"
)

var Tiers = []Tier{TierDefault, TierMedium, TierFast}

// Price is either a legacy gas price or an EIP-1559 fee pair, in wei.
type Price struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

func LegacyPrice(gasPrice *big.Int) Price {
	return Price{GasPrice: gasPrice}
}

func DynamicPrice(maxFeePerGas, maxPriorityFeePerGas *big.Int) Price {
	return Price{MaxFeePerGas: maxFeePerGas, MaxPriorityFeePerGas: maxPriorityFeePerGas}
}

func (p Price) IsDynamicFee() bool {
	return p.MaxFeePerGas != nil && p.MaxPriorityFeePerGas != nil
}

func (p Price) IsZero() bool {
	return p.GasPrice == nil && !p.IsDynamicFee()
}

func (p Price) String() string {
	if p.IsDynamicFee() {
		return fmt.Sprintf("maxFee=%s maxPriorityFee=%s", p.MaxFeePerGas, p.MaxPriorityFeePerGas)
	}
	if p.GasPrice == nil {
		return "<nil>"
	}
	return p.GasPrice.String()
}

// ApplyTo writes the price into raw, clearing the fields of the other pricing model.
func (p Price) ApplyTo(raw *relay.RawTransaction) {
	if p.IsDynamicFee() {
		raw.GasPrice = ""
		raw.MaxFeePerGas = ToHex(p.MaxFeePerGas)
		raw.MaxPriorityFeePerGas = ToHex(p.MaxPriorityFeePerGas)
		return
	}
	raw.GasPrice = ToHex(p.GasPrice)
	raw.MaxFeePerGas = ""
	raw.MaxPriorityFeePerGas = ""
}

// FromRawTransaction returns the price a raw transaction was sent with.
func FromRawTransaction(raw relay.RawTransaction) (Price, error) {
	if raw.IsDynamicFee() {
		maxFee, err := ParseWei(raw.MaxFeePerGas)
		if err != nil {
			return Price{}, fmt.Errorf("failed to parse maxFeePerGas: %w", err)
		}
		tip, err := ParseWei(raw.MaxPriorityFeePerGas)
		if err != nil {
			return Price{}, fmt.Errorf("failed to parse maxPriorityFeePerGas: %w", err)
		}
		return DynamicPrice(maxFee, tip), nil
	}

	gasPrice, err := ParseWei(raw.GasPrice)
	if err != nil {
		return Price{}, fmt.Errorf("failed to parse gasPrice: %w", err)
	}
	return LegacyPrice(gasPrice), nil
}

// ToHex normalizes a wei amount to a 0x-prefixed integer hex string.
func ToHex(v *big.Int) string {
	if v == nil {
		return ""
	}
	return hexutil.EncodeBig(v)
}

// ParseWei accepts 0x-prefixed hex or decimal integers.
func ParseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty wei amount")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex wei amount %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

// MaxPrice returns the higher of a and b per leg. Both must use the same pricing model.
func MaxPrice(a, b Price) Price {
	if a.IsDynamicFee() && b.IsDynamicFee() {
		return DynamicPrice(maxBig(a.MaxFeePerGas, b.MaxFeePerGas), maxBig(a.MaxPriorityFeePerGas, b.MaxPriorityFeePerGas))
	}
	if a.GasPrice == nil {
		return b
	}
	if b.GasPrice == nil {
		return a
	}
	return LegacyPrice(maxBig(a.GasPrice, b.GasPrice))
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
