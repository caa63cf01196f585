package gasprice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"
)

const gasStationTimeout = 5 * time.Second

var gwei = big.NewFloat(1e9)

// GasStationClient reads gwei denominated price tiers from an HTTP gas station.
type GasStationClient struct {
	client http.Client
}

func NewGasStationClient() *GasStationClient {
	return &GasStationClient{
		client: http.Client{
			Timeout: gasStationTimeout,
		},
	}
}

type legacyStationResponse struct {
	Standard *float64 `json:"standard"`
	Fast     *float64 `json:"fast"`
	Fastest  *float64 `json:"fastest"`
}

type feePair struct {
	MaxPriorityFee float64 `json:"maxPriorityFee"`
	MaxFee         float64 `json:"maxFee"`
}

type eip1559Station struct {
	SafeLow          *feePair `json:"safeLow"`
	Standard         *feePair `json:"standard"`
	Fast             *feePair `json:"fast"`
	EstimatedBaseFee float64  `json:"estimatedBaseFee"`
}

type eip1559StationResponse struct {
	eip1559Station
	Data *eip1559Station `json:"data"`
}

type scanResponse struct {
	Status string `json:"status"`
	Result struct {
		SafeGasPrice    string `json:"SafeGasPrice"`
		ProposeGasPrice string `json:"ProposeGasPrice"`
		FastGasPrice    string `json:"FastGasPrice"`
	} `json:"result"`
}

// LegacyFetcher reads {standard, fast, fastest} from url.
func (c *GasStationClient) LegacyFetcher(url string) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		var res legacyStationResponse
		if err := c.get(ctx, url, &res); err != nil {
			return Snapshot{}, err
		}
		if res.Standard == nil || res.Fast == nil || res.Fastest == nil {
			return Snapshot{}, fmt.Errorf("incomplete gas station response from %s", url)
		}

		return Snapshot{
			Medium:  LegacyPrice(gweiToWei(*res.Standard)),
			Fast:    LegacyPrice(gweiToWei(*res.Fast)),
			Fastest: LegacyPrice(gweiToWei(*res.Fastest)),
		}, nil
	}
}

// ScanFetcher reads an etherscan style gas oracle response from url.
func (c *GasStationClient) ScanFetcher(url string) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		var res scanResponse
		if err := c.get(ctx, url, &res); err != nil {
			return Snapshot{}, err
		}
		if res.Status != "1" {
			return Snapshot{}, fmt.Errorf("invalid gas oracle response status %q from %s", res.Status, url)
		}

		var (
			snapshot Snapshot
			tiers    = []struct {
				value string
				dst   *Price
			}{
				{res.Result.SafeGasPrice, &snapshot.Medium},
				{res.Result.ProposeGasPrice, &snapshot.Fast},
				{res.Result.FastGasPrice, &snapshot.Fastest},
			}
		)
		for _, tier := range tiers {
			v, err := strconv.ParseFloat(tier.value, 64)
			if err != nil {
				return Snapshot{}, fmt.Errorf("failed to parse gas oracle price %q: %w", tier.value, err)
			}
			*tier.dst = LegacyPrice(gweiToWei(v))
		}
		return snapshot, nil
	}
}

// EIP1559Fetcher reads {safeLow, standard, fast} fee pairs from url, optionally wrapped in "data".
func (c *GasStationClient) EIP1559Fetcher(url string) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		var res eip1559StationResponse
		if err := c.get(ctx, url, &res); err != nil {
			return Snapshot{}, err
		}

		station := res.eip1559Station
		if res.Data != nil {
			station = *res.Data
		}
		if station.SafeLow == nil || station.Standard == nil || station.Fast == nil {
			return Snapshot{}, fmt.Errorf("incomplete eip1559 gas station response from %s", url)
		}

		return Snapshot{
			Medium:  station.Standard.price(),
			Fast:    station.SafeLow.price(),
			Fastest: station.Fast.price(),
		}, nil
	}
}

func (p feePair) price() Price {
	return DynamicPrice(gweiToWei(p.MaxFee), gweiToWei(p.MaxPriorityFee))
}

func (c *GasStationClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("got unexpected http response status code: %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func gweiToWei(v float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(v), gwei).Int(nil)
	return wei
}
