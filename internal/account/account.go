package account

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bcnmy/relayer-node/internal/relay"
)

// Signer is the key custody capability used by the relayer pool. Implementations other than
// EVMAccount (remote signers, HSMs) can be swapped in without touching pool logic.
type Signer interface {
	// GetPublicKey returns the lowercase hex address of the account.
	GetPublicKey() string
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	SignMessage(message []byte) ([]byte, error)
}

// EVMAccount signs with an in-memory secp256k1 key.
type EVMAccount struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewEVMAccount(key *ecdsa.PrivateKey) *EVMAccount {
	return &EVMAccount{
		key:     key,
		address: relay.NormalizeAddress(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

// FromPrivateKey parses a hex private key, with or without the 0x prefix.
func FromPrivateKey(hexKey string) (*EVMAccount, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewEVMAccount(key), nil
}

func (a *EVMAccount) GetPublicKey() string {
	return a.address
}

func (a *EVMAccount) Address() common.Address {
	return common.HexToAddress(a.address)
}

func (a *EVMAccount) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// SignMessage produces an EIP-191 personal_sign signature with v in {27, 28}.
func (a *EVMAccount) SignMessage(message []byte) ([]byte, error) {
	signature, err := crypto.Sign(accounts.TextHash(message), a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

// DerivationPath returns the BIP44 path of relayer index under nodePathIndex.
func DerivationPath(nodePathIndex, index uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/%d/%d", nodePathIndex, index)
}

// Derive deterministically derives the relayer key at index from the UTF-8 bytes of seed.
func Derive(seed string, nodePathIndex, index uint32) (*EVMAccount, error) {
	secret, chainCode := hd.ComputeMastersFromSeed([]byte(seed))

	keyBytes, err := hd.DerivePrivateKeyForPath(secret, chainCode, DerivationPath(nodePathIndex, index))
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key for index %d: %w", index, err)
	}

	key, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to convert derived key: %w", err)
	}

	return NewEVMAccount(key), nil
}
