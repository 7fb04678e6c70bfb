// Package submitter builds and dispatches the trigger transaction. Two
// modes exist: direct broadcast through the node's transaction pool with
// confirmation wait, and a fan-out race that signs once and pushes the raw
// transaction to several block-builder relays at the same time.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoEligibleTarget means the contract reports no pending work, so a
	// trigger right now would earn nothing. Benign: the caller treats it
	// as "handled", not as a failure.
	ErrNoEligibleTarget = errors.New("no eligible trigger target")

	// ErrSubmissionRejected covers every other submission failure. The
	// fired mark is not advanced on it, so the same window is retried.
	ErrSubmissionRejected = errors.New("submission rejected")
)

// RelayResult is the per-endpoint outcome of a fan-out dispatch. Accepted
// means the relay acknowledged the submission; it says nothing about
// inclusion.
type RelayResult struct {
	Relay    string
	Accepted bool
	Err      error
}

// Outcome reports what a Submit call achieved. Direct mode fills the
// confirmation fields; fan-out mode fills RelayResults.
type Outcome struct {
	Dispatched bool
	Confirmed  bool

	// RewardDelta is the observed change of the wallet's claimable balance
	// across the confirmed trigger (direct mode, nil when unknown).
	RewardDelta *big.Int

	// CostPaid is gasUsed x effective gas price for the confirmed
	// transaction (direct mode, nil when unknown).
	CostPaid *big.Int

	RelayResults []RelayResult
}

// AcceptedCount returns how many relays acknowledged the fan-out.
func (o Outcome) AcceptedCount() int {
	n := 0
	for _, r := range o.RelayResults {
		if r.Accepted {
			n++
		}
	}
	return n
}

// Backend is the slice of an RPC client both submission modes need.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Confirmation wait tuning shared by direct submission and claims.
const (
	DefaultCheckInterval  = 2 * time.Second
	DefaultConfirmTimeout = 90 * time.Second
)

// WaitMined polls for the receipt of txHash until confirmed, the timeout
// elapses, or ctx is cancelled. Zero tuning values take the package
// defaults. Shared by direct submission and the claim sequencer.
func WaitMined(ctx context.Context, backend Backend, txHash common.Hash, checkInterval, timeout time.Duration) (*types.Receipt, error) {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transaction %s not mined within %v", txHash.Hex(), timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// effectiveGasPrice computes what one gas unit actually cost for a mined
// EIP-1559 transaction: baseFee+tip, capped by the fee cap. On a
// pre-london block the fee cap itself is charged.
func effectiveGasPrice(header *types.Header, feeCap, tipCap *big.Int) *big.Int {
	if header == nil || header.BaseFee == nil {
		return new(big.Int).Set(feeCap)
	}
	price := new(big.Int).Add(header.BaseFee, tipCap)
	if price.Cmp(feeCap) > 0 {
		price.Set(feeCap)
	}
	return price
}
