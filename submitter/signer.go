package submitter

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer abstracts transaction signing so key custody stays outside the
// submission path. Implementations must be safe for reuse across ticks.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// keySigner signs with an in-process secp256k1 key. The minimal custody
// option; anything holding the key elsewhere just implements Signer.
type keySigner struct {
	key     *ecdsa.PrivateKey
	addr    common.Address
	chainID *big.Int
}

// NewKeySigner parses a hex private key (0x prefix optional) and binds it
// to chainID for EIP-155/1559 signing.
func NewKeySigner(hexKey string, chainID *big.Int) (Signer, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if h == "" {
		return nil, fmt.Errorf("empty signing key")
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("signer requires a positive chain id")
	}
	return &keySigner{
		key:     key,
		addr:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (s *keySigner) Address() common.Address { return s.addr }

func (s *keySigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}
