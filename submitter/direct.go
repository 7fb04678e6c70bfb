package submitter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-epoch-trigger/contracts/rewarder"
	"github.com/rony4d/go-epoch-trigger/fees"
)

// Direct broadcasts the trigger through the node's transaction pool and
// waits for the receipt. The slower but fully observable mode: it reports
// the reward actually earned and the gas actually paid.
type Direct struct {
	backend  Backend
	signer   Signer
	contract *rewarder.Rewarder
	chainID  *big.Int
	log      *logrus.Entry

	// CheckInterval and ConfirmTimeout tune the receipt poll; zero values
	// take the package defaults.
	CheckInterval  time.Duration
	ConfirmTimeout time.Duration
}

func NewDirect(backend Backend, signer Signer, contract *rewarder.Rewarder, chainID *big.Int, log *logrus.Entry) *Direct {
	return &Direct{
		backend:  backend,
		signer:   signer,
		contract: contract,
		chainID:  chainID,
		log:      log,
	}
}

// Submit fires the trigger for targetEpoch with the given fee bid.
// Fails with ErrNoEligibleTarget when the contract has no pending work and
// ErrSubmissionRejected for everything else.
func (d *Direct) Submit(ctx context.Context, targetEpoch idx.Epoch, bid fees.Bid) (Outcome, error) {
	pending, err := d.contract.RewardsAvailable(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: rewardsAvailable read: %v", ErrSubmissionRejected, err)
	}
	if pending.Sign() == 0 {
		return Outcome{}, ErrNoEligibleTarget
	}

	// Balance before the trigger; best effort, the delta is informational.
	before, _ := d.contract.RewardsOf(ctx, d.signer.Address())

	tx, err := d.buildAndSign(ctx, bid)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}
	if err := d.backend.SendTransaction(ctx, tx); err != nil {
		return Outcome{}, fmt.Errorf("%w: broadcast: %v", ErrSubmissionRejected, err)
	}
	d.log.WithFields(logrus.Fields{
		"tx":     tx.Hash().Hex(),
		"epoch":  targetEpoch,
		"maxFee": bid.MaxFee,
		"tip":    bid.MaxPriorityFee,
	}).Info("trigger broadcast")

	receipt, err := WaitMined(ctx, d.backend, tx.Hash(), d.CheckInterval, d.ConfirmTimeout)
	if err != nil {
		// Dispatched but unconfirmed: report the dispatch, surface the
		// wait failure so the caller retries the window.
		return Outcome{Dispatched: true}, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}
	if receipt.Status != 1 {
		return Outcome{Dispatched: true}, fmt.Errorf("%w: trigger reverted in block %v", ErrSubmissionRejected, receipt.BlockNumber)
	}

	out := Outcome{Dispatched: true, Confirmed: true}

	if before != nil {
		if after, err := d.contract.RewardsOf(ctx, d.signer.Address()); err == nil {
			out.RewardDelta = new(big.Int).Sub(after, before)
		}
	}
	if header, err := d.backend.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		price := effectiveGasPrice(header, bid.MaxFee, bid.MaxPriorityFee)
		out.CostPaid = new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	}

	d.log.WithFields(logrus.Fields{
		"tx":          tx.Hash().Hex(),
		"block":       receipt.BlockNumber,
		"gasUsed":     receipt.GasUsed,
		"rewardDelta": out.RewardDelta,
		"costPaid":    out.CostPaid,
	}).Info("trigger confirmed")
	return out, nil
}

func (d *Direct) buildAndSign(ctx context.Context, bid fees.Bid) (*types.Transaction, error) {
	nonce, err := d.backend.PendingNonceAt(ctx, d.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("nonce read: %w", err)
	}
	to := d.contract.Address()
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   d.chainID,
		Nonce:     nonce,
		GasTipCap: bid.MaxPriorityFee,
		GasFeeCap: bid.MaxFee,
		Gas:       rewarder.TriggerGasLimit,
		To:        &to,
		Value:     new(big.Int),
		Data:      rewarder.TriggerCallData(),
	})
	return d.signer.SignTx(tx)
}
