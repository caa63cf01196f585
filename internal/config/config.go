package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/bcnmy/relayer-node/internal/relay"
	"github.com/bcnmy/relayer-node/internal/transaction"
)

const (
	EnvPrefix     = "RELAYER"
	managerPrefix = EnvPrefix + "_MANAGER"
	urlSeparator  = ";"
)

// RelayerNodeConfig is the node configuration.
type RelayerNodeConfig struct {
	ChainIDs      []uint64    `envconfig:"CHAIN_IDS" required:"true"`
	RPCURLs       ChainValues `envconfig:"RPC_URLS" required:"true"`
	EIP1559Chains []uint64    `envconfig:"EIP1559_CHAIN_IDS"`
	Managers      []string    `envconfig:"MANAGERS" default:"RM1"`

	ListenAddr          string        `envconfig:"LISTEN_ADDR" default:":10001"`
	StoragePath         string        `envconfig:"DB_PATH" default:"./storage/transactions"`
	QueuePath           string        `envconfig:"QUEUE_PATH" default:"./storage/queue"`
	QueuePollInterval   time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"500ms"`
	RequeueDelay        time.Duration `envconfig:"REQUEUE_DELAY" default:"1s"`
	ReceiptPollInterval time.Duration `envconfig:"RECEIPT_POLL_INTERVAL" default:"2s"`
	UsedNonceRetention  time.Duration `envconfig:"USED_NONCE_RETENTION" default:"1h"`
	ConfirmedCacheSize  int           `envconfig:"CONFIRMED_CACHE_SIZE" default:"10000"`
	StatusCheckTimeout  time.Duration `envconfig:"STATUS_CHECK_TIMEOUT" default:"10s"`
	NodePathIndex       uint32        `envconfig:"NODE_PATH_INDEX" default:"0"`

	GasPriceConfig
	TransactionConfig
}

// GasPriceConfig bounds are decimal wei amounts.
type GasPriceConfig struct {
	UpdateFrequency        time.Duration `envconfig:"GAS_PRICE_UPDATE_FREQUENCY" default:"60s"`
	GasStationURLs         ChainValues   `envconfig:"GAS_STATION_URLS"`
	FallbackGasStationURLs ChainValues   `envconfig:"FALLBACK_GAS_STATION_URLS"`
	MinGasPrice            ChainValues   `envconfig:"MIN_GAS_PRICE"`
	MaxGasPrice            ChainValues   `envconfig:"MAX_GAS_PRICE"`
	BaseFeeMultiplier      ChainValues   `envconfig:"BASE_FEE_MULTIPLIER"`
}

type TransactionConfig struct {
	// MaxRetryCount is keyed by transaction type.
	MaxRetryCount            map[string]int `envconfig:"MAX_RETRY_COUNT" default:"AA:5,SCW:5,CROSS_CHAIN:5,FUNDING:5"`
	BumpGasPricePercent      ChainValues    `envconfig:"BUMP_GAS_PRICE_PERCENT"`
	DefaultBumpPercent       uint64         `envconfig:"DEFAULT_BUMP_GAS_PRICE_PERCENT" default:"10"`
	RetryTransactionInterval ChainValues    `envconfig:"RETRY_TRANSACTION_INTERVAL"`
	NonceTooLowErrors        ChainValues    `envconfig:"NONCE_TOO_LOW_ERRORS"`
	InsufficientFundsErrors  ChainValues    `envconfig:"INSUFFICIENT_FUNDS_ERRORS"`
	UnderpricedErrors        ChainValues    `envconfig:"REPLACEMENT_UNDERPRICED_ERRORS"`
	AlreadyKnownErrors       ChainValues    `envconfig:"ALREADY_KNOWN_ERRORS"`
}

// ManagerConfig is a relayer manager, read from RELAYER_MANAGER_<NAME>_*. Funding amounts are
// decimal ether amounts.
type ManagerConfig struct {
	Name                             string      `ignored:"true"`
	OwnerPrivateKey                  string      `envconfig:"OWNER_PRIVATE_KEY" required:"true"`
	RelayerSeed                      string      `envconfig:"RELAYER_SEED" required:"true"`
	TransactionTypes                 []string    `envconfig:"TRANSACTION_TYPES" default:"AA,SCW"`
	ChainIDs                         []uint64    `envconfig:"CHAIN_IDS"`
	MinRelayerCount                  int         `envconfig:"MIN_RELAYER_COUNT" default:"5"`
	MaxRelayerCount                  int         `envconfig:"MAX_RELAYER_COUNT" default:"15"`
	InactiveRelayerCountThreshold    int         `envconfig:"INACTIVE_RELAYER_COUNT_THRESHOLD" default:"2"`
	PendingTransactionCountThreshold int         `envconfig:"PENDING_TRANSACTION_COUNT_THRESHOLD" default:"15"`
	NewRelayerInstanceCount          int         `envconfig:"NEW_RELAYER_INSTANCE_COUNT" default:"2"`
	FundingGasLimit                  uint64      `envconfig:"FUNDING_GAS_LIMIT" default:"21000"`
	ArbitrumFundingGasLimit          uint64      `envconfig:"ARBITRUM_FUNDING_GAS_LIMIT" default:"300000"`
	FundingRelayerAmount             ChainValues `envconfig:"FUNDING_RELAYER_AMOUNT"`
	FundingBalanceThreshold          ChainValues `envconfig:"FUNDING_BALANCE_THRESHOLD"`
}

// ChainValues is a per chain setting written as 137=value,80001=value. Values may contain
// colons, which the envconfig map syntax does not allow.
type ChainValues map[uint64]string

func (c *ChainValues) Decode(value string) error {
	out := make(ChainValues)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid chain value %q", pair)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chain id in %q: %w", pair, err)
		}
		out[chainID] = strings.TrimSpace(v)
	}
	*c = out
	return nil
}

// NewRelayerNodeConfig reads the node configuration and every relayer manager it names from
// the environment.
func NewRelayerNodeConfig(logger *zap.Logger) (RelayerNodeConfig, []ManagerConfig, error) {
	var cfg RelayerNodeConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, nil, fmt.Errorf("failed to init config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, nil, err
	}

	managers := make([]ManagerConfig, 0, len(cfg.Managers))
	for _, name := range cfg.Managers {
		var m ManagerConfig
		if err := envconfig.Process(managerPrefix+"_"+strings.ToUpper(name), &m); err != nil {
			return cfg, nil, fmt.Errorf("failed to init relayer manager %s config: %w", name, err)
		}
		m.Name = name
		if err := m.validate(cfg.ChainIDs); err != nil {
			return cfg, nil, err
		}
		managers = append(managers, m)
	}

	logger.Info("loaded config",
		zap.Uint64s("chain_ids", cfg.ChainIDs),
		zap.Uint64s("eip1559_chain_ids", cfg.EIP1559Chains),
		zap.Strings("relayer_managers", cfg.Managers),
		zap.String("listen_addr", cfg.ListenAddr))
	return cfg, managers, nil
}

// URLs returns the RPC endpoints of a chain in fallback order.
func (c RelayerNodeConfig) URLs(chainID uint64) []string {
	var urls []string
	for _, u := range strings.Split(c.RPCURLs[chainID], urlSeparator) {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (c RelayerNodeConfig) IsEIP1559(chainID uint64) bool {
	for _, id := range c.EIP1559Chains {
		if id == chainID {
			return true
		}
	}
	return false
}

// GasPriceBounds returns the configured clamp of a chain, nil when unbounded.
func (c GasPriceConfig) GasPriceBounds(chainID uint64) (min, max *big.Int) {
	return weiValue(c.MinGasPrice, chainID), weiValue(c.MaxGasPrice, chainID)
}

func (c GasPriceConfig) BaseFeeMultiplierFor(chainID uint64) float64 {
	v, ok := c.BaseFeeMultiplier[chainID]
	if !ok {
		return 0
	}
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

// MaxRetryCounts returns the retry limits per transaction type.
func (c TransactionConfig) MaxRetryCounts() map[relay.TransactionType]int {
	out := make(map[relay.TransactionType]int, len(c.MaxRetryCount))
	for t, n := range c.MaxRetryCount {
		out[relay.TransactionType(strings.ToUpper(t))] = n
	}
	return out
}

func (c TransactionConfig) BumpPercent(chainID uint64) uint64 {
	if v, ok := c.BumpGasPricePercent[chainID]; ok {
		p, _ := strconv.ParseUint(v, 10, 64)
		return p
	}
	return c.DefaultBumpPercent
}

// RetryDelay is zero when the chain uses the listener default.
func (c TransactionConfig) RetryDelay(chainID uint64) time.Duration {
	d, _ := time.ParseDuration(c.RetryTransactionInterval[chainID])
	return d
}

func (c TransactionConfig) ErrorMessages(chainID uint64) transaction.ErrorMessages {
	return transaction.ErrorMessages{
		NonceTooLow:            c.NonceTooLowErrors[chainID],
		ReplacementUnderpriced: c.UnderpricedErrors[chainID],
		AlreadyKnown:           c.AlreadyKnownErrors[chainID],
		InsufficientFunds:      c.InsufficientFundsErrors[chainID],
	}
}

func (c RelayerNodeConfig) validate() error {
	if len(c.ChainIDs) == 0 {
		return fmt.Errorf("no chain ids configured")
	}
	for _, chainID := range c.ChainIDs {
		if len(c.URLs(chainID)) == 0 {
			return fmt.Errorf("no rpc url configured for chain %d", chainID)
		}
	}
	for _, bounds := range []ChainValues{c.MinGasPrice, c.MaxGasPrice} {
		for chainID, v := range bounds {
			if _, ok := new(big.Int).SetString(v, 10); !ok {
				return fmt.Errorf("invalid gas price bound %q for chain %d", v, chainID)
			}
		}
	}
	for chainID, v := range c.BaseFeeMultiplier {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid base fee multiplier %q for chain %d", v, chainID)
		}
	}
	for chainID, v := range c.BumpGasPricePercent {
		if _, err := strconv.ParseUint(v, 10, 64); err != nil {
			return fmt.Errorf("invalid bump gas price percent %q for chain %d", v, chainID)
		}
	}
	for chainID, v := range c.RetryTransactionInterval {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid retry transaction interval %q for chain %d", v, chainID)
		}
	}
	if len(c.Managers) == 0 {
		return fmt.Errorf("no relayer managers configured")
	}
	return nil
}

// Chains returns the chains the manager serves, all node chains when none are listed.
func (m ManagerConfig) Chains(nodeChains []uint64) []uint64 {
	if len(m.ChainIDs) == 0 {
		return nodeChains
	}
	return m.ChainIDs
}

func (m ManagerConfig) Types() []relay.TransactionType {
	out := make([]relay.TransactionType, 0, len(m.TransactionTypes))
	for _, t := range m.TransactionTypes {
		out = append(out, relay.TransactionType(strings.ToUpper(strings.TrimSpace(t))))
	}
	return out
}

// GasLimitMap is the funding gas limit map of the relayer manager: index 1 is used on
// Arbitrum chains, index 0 elsewhere.
func (m ManagerConfig) GasLimitMap() map[int]uint64 {
	return map[int]uint64{0: m.FundingGasLimit, 1: m.ArbitrumFundingGasLimit}
}

func (m ManagerConfig) validate(nodeChains []uint64) error {
	if m.OwnerPrivateKey == "" || m.RelayerSeed == "" {
		return fmt.Errorf("relayer manager %s needs an owner private key and a relayer seed", m.Name)
	}
	known := make(map[uint64]bool, len(nodeChains))
	for _, id := range nodeChains {
		known[id] = true
	}
	for _, id := range m.ChainIDs {
		if !known[id] {
			return fmt.Errorf("relayer manager %s uses chain %d which is not configured", m.Name, id)
		}
	}
	for _, t := range m.Types() {
		switch t {
		case relay.TransactionTypeAA, relay.TransactionTypeSCW, relay.TransactionTypeCrossChain:
		default:
			return fmt.Errorf("relayer manager %s has unsupported transaction type %s", m.Name, t)
		}
	}
	if m.MaxRelayerCount < m.MinRelayerCount {
		return fmt.Errorf("relayer manager %s: max relayer count %d is below min relayer count %d",
			m.Name, m.MaxRelayerCount, m.MinRelayerCount)
	}
	for chainID, v := range m.FundingBalanceThreshold {
		if _, ok := new(big.Rat).SetString(v); !ok {
			return fmt.Errorf("relayer manager %s: invalid funding balance threshold %q for chain %d", m.Name, v, chainID)
		}
	}
	for chainID, v := range m.FundingRelayerAmount {
		if _, ok := new(big.Rat).SetString(v); !ok {
			return fmt.Errorf("relayer manager %s: invalid funding relayer amount %q for chain %d", m.Name, v, chainID)
		}
	}
	return nil
}

func weiValue(values ChainValues, chainID uint64) *big.Int {
	v, ok := values[chainID]
	if !ok {
		return nil
	}
	wei, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil
	}
	return wei
}
