package gasprice_test

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnmy/relayer-node/internal/gasprice"
)

func TestBumpGasPrice(t *testing.T) {
	tests := []struct {
		name    string
		past    int64
		percent uint64
		want    int64
	}{
		{"floor applies below ten percent", 100, 5, 110},
		{"configured percent above floor", 100, 20, 120},
		{"exactly ten percent", 100, 10, 110},
		{"floor rounds up", 101, 0, 112},
		{"gwei price", 30_000_000_000, 5, 33_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bumped, err := gasprice.BumpGasPrice(gasprice.LegacyPrice(big.NewInt(tt.past)), tt.percent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bumped.GasPrice.Int64())
		})
	}
}

func TestBumpGasPriceDynamicFeeBumpsEachLeg(t *testing.T) {
	bumped, err := gasprice.BumpGasPrice(gasprice.DynamicPrice(big.NewInt(200), big.NewInt(10)), 5)
	require.NoError(t, err)
	require.True(t, bumped.IsDynamicFee())
	assert.Equal(t, int64(220), bumped.MaxFeePerGas.Int64())
	assert.Equal(t, int64(11), bumped.MaxPriorityFeePerGas.Int64())
}

func TestBumpGasPriceIsAtLeastTenPercent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		past := big.NewInt(r.Int63n(1_000_000_000_000) + 1)
		percent := uint64(r.Intn(50))

		bumped, err := gasprice.BumpGasPrice(gasprice.LegacyPrice(past), percent)
		require.NoError(t, err)

		// bumped * 10 >= past * 11
		lhs := new(big.Int).Mul(bumped.GasPrice, big.NewInt(10))
		rhs := new(big.Int).Mul(past, big.NewInt(11))
		assert.GreaterOrEqual(t, lhs.Cmp(rhs), 0, "past=%s percent=%d bumped=%s", past, percent, bumped.GasPrice)
	}
}

func TestBumpGasPriceRejectsInvalidPrice(t *testing.T) {
	_, err := gasprice.BumpGasPrice(gasprice.Price{}, 10)
	assert.Error(t, err)

	_, err = gasprice.BumpGasPrice(gasprice.LegacyPrice(big.NewInt(-1)), 10)
	assert.Error(t, err)
}

func TestParseWei(t *testing.T) {
	v, err := gasprice.ParseWei("0x6fc23ac00")
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000_000), v.Int64())

	v, err = gasprice.ParseWei("30000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000_000), v.Int64())

	_, err = gasprice.ParseWei("0xzz")
	assert.Error(t, err)
	_, err = gasprice.ParseWei("")
	assert.Error(t, err)

	assert.Equal(t, "0x6fc23ac00", gasprice.ToHex(big.NewInt(30_000_000_000)))
}
