package gasprice_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/cache"
	"github.com/bcnmy/relayer-node/internal/gasprice"
	mock_network "github.com/bcnmy/relayer-node/testutil/mocks/network"
)

func gweiInt(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_000_000_000))
}

func cachedTier(t *testing.T, oracle *gasprice.Oracle, tier gasprice.Tier) gasprice.Price {
	price, err := oracle.GetGasPrice(context.Background(), tier)
	require.NoError(t, err)
	return price
}

func TestRefresherUsesGasStationAndClamps(t *testing.T) {
	station := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"standard": 25, "fast": 40, "fastest": 600}`))
	}))
	defer station.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := cache.NewMemoryCache()
	defer c.Close()
	oracle := gasprice.NewOracle(137, false, c, mock_network.NewMockClient(ctrl), zap.NewNop())

	strategy := gasprice.Strategy{
		Fetch:       gasprice.NewGasStationClient().LegacyFetcher(station.URL),
		MinGasPrice: gweiInt(30),
		MaxGasPrice: gweiInt(500),
	}
	require.NoError(t, gasprice.NewRefresher(oracle, strategy, 0, zap.NewNop()).Refresh(context.Background()))

	assert.Equal(t, gweiInt(30), cachedTier(t, oracle, gasprice.TierMedium).GasPrice)
	assert.Equal(t, gweiInt(40), cachedTier(t, oracle, gasprice.TierDefault).GasPrice)
	assert.Equal(t, gweiInt(500), cachedTier(t, oracle, gasprice.TierFast).GasPrice)
}

func TestRefresherFallsBackToSecondSource(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer broken.Close()
	scan := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"1","result":{"SafeGasPrice":"31","ProposeGasPrice":"35","FastGasPrice":"36"}}`))
	}))
	defer scan.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := cache.NewMemoryCache()
	defer c.Close()
	oracle := gasprice.NewOracle(137, false, c, mock_network.NewMockClient(ctrl), zap.NewNop())

	stations := gasprice.NewGasStationClient()
	strategy := gasprice.Strategy{
		Fetch: gasprice.FirstOf(stations.LegacyFetcher(broken.URL), stations.ScanFetcher(scan.URL)),
	}
	require.NoError(t, gasprice.NewRefresher(oracle, strategy, 0, zap.NewNop()).Refresh(context.Background()))

	assert.Equal(t, gweiInt(31), cachedTier(t, oracle, gasprice.TierMedium).GasPrice)
	assert.Equal(t, gweiInt(35), cachedTier(t, oracle, gasprice.TierDefault).GasPrice)
	// fastest is raised to 111% of fast
	assert.Equal(t, big.NewInt(38_850_000_000), cachedTier(t, oracle, gasprice.TierFast).GasPrice)
}

func TestRefresherUsesDefaultsWhenEverySourceFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := cache.NewMemoryCache()
	defer c.Close()
	client := mock_network.NewMockClient(ctrl)
	oracle := gasprice.NewOracle(80001, false, c, client, zap.NewNop())

	client.EXPECT().GetGasPrice(gomock.Any()).Return(nil, errors.New("timeout"))
	strategy := gasprice.Strategy{Fetch: gasprice.NetworkFetcher(client, false)}
	require.NoError(t, gasprice.NewRefresher(oracle, strategy, 0, zap.NewNop()).Refresh(context.Background()))

	assert.Equal(t, gweiInt(20), cachedTier(t, oracle, gasprice.TierMedium).GasPrice)
	assert.Equal(t, gweiInt(30), cachedTier(t, oracle, gasprice.TierDefault).GasPrice)
	assert.Equal(t, big.NewInt(33_300_000_000), cachedTier(t, oracle, gasprice.TierFast).GasPrice)
}

func TestRefresherEIP1559Station(t *testing.T) {
	station := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"safeLow": {"maxPriorityFee": 30, "maxFee": 40},
			"standard": {"maxPriorityFee": 32, "maxFee": 42},
			"fast": {"maxPriorityFee": 40, "maxFee": 60},
			"estimatedBaseFee": 10
		}`))
	}))
	defer station.Close()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	c := cache.NewMemoryCache()
	defer c.Close()
	oracle := gasprice.NewOracle(137, true, c, mock_network.NewMockClient(ctrl), zap.NewNop())

	strategy := gasprice.Strategy{
		Fetch:             gasprice.NewGasStationClient().EIP1559Fetcher(station.URL),
		BaseFeeMultiplier: 2,
	}
	require.NoError(t, gasprice.NewRefresher(oracle, strategy, 0, zap.NewNop()).Refresh(context.Background()))

	def := cachedTier(t, oracle, gasprice.TierDefault)
	require.True(t, def.IsDynamicFee())
	assert.Equal(t, gweiInt(80), def.MaxFeePerGas)
	assert.Equal(t, gweiInt(30), def.MaxPriorityFeePerGas)

	fast := cachedTier(t, oracle, gasprice.TierFast)
	assert.Equal(t, gweiInt(120), fast.MaxFeePerGas)
	assert.Equal(t, gweiInt(40), fast.MaxPriorityFeePerGas)
}
