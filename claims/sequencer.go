// Package claims sweeps the trigger wallet's earned reward balance. The
// sweep runs right after a successful trigger and opportunistically on
// every tick, so a missed confirmation never strands a balance.
//
// A configured ceiling guards against anomalies: a balance larger than
// any plausible earning is treated as a measurement or contract error and
// left alone with a warning instead of being claimed.
package claims

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-epoch-trigger/contracts/rewarder"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/submitter"
)

// Result reports what one MaybeClaim pass did.
type Result struct {
	// Balance is the claimable balance observed this pass.
	Balance *big.Int

	// Claimed is true when a claim transaction confirmed.
	Claimed bool

	// AboveCeiling is true when the balance tripped the anomaly guard and
	// no claim was attempted.
	AboveCeiling bool

	// TxHash identifies the claim transaction when one was sent.
	TxHash string
}

// Sequencer reads and sweeps the wallet's reward balance.
type Sequencer struct {
	backend  submitter.Backend
	signer   submitter.Signer
	contract *rewarder.Rewarder
	chainID  *big.Int
	ceiling  *big.Int
	log      *logrus.Entry

	// CheckInterval and ConfirmTimeout tune the receipt poll; zero values
	// take the submitter defaults.
	CheckInterval  time.Duration
	ConfirmTimeout time.Duration
}

func New(backend submitter.Backend, signer submitter.Signer, contract *rewarder.Rewarder,
	chainID, ceiling *big.Int, log *logrus.Entry) (*Sequencer, error) {

	if ceiling == nil || ceiling.Sign() <= 0 {
		return nil, fmt.Errorf("claim ceiling must be positive")
	}
	return &Sequencer{
		backend:  backend,
		signer:   signer,
		contract: contract,
		chainID:  chainID,
		ceiling:  ceiling,
		log:      log,
	}, nil
}

// MaybeClaim re-reads the claimable balance and sweeps it when
// 0 < balance <= ceiling. A zero balance is a no-op; a balance above the
// ceiling is skipped with a warning. The balance is always read fresh,
// never cached across ticks.
func (s *Sequencer) MaybeClaim(ctx context.Context, bid fees.Bid) (Result, error) {
	balance, err := s.contract.RewardsOf(ctx, s.signer.Address())
	if err != nil {
		return Result{}, fmt.Errorf("reward balance read: %w", err)
	}
	res := Result{Balance: balance}

	if balance.Sign() == 0 {
		return res, nil
	}
	if balance.Cmp(s.ceiling) > 0 {
		res.AboveCeiling = true
		s.log.WithFields(logrus.Fields{
			"balance": balance,
			"ceiling": s.ceiling,
		}).Warn("claimable balance above ceiling, skipping claim")
		return res, nil
	}

	tx, err := s.sendClaim(ctx, bid)
	if err != nil {
		return res, fmt.Errorf("claim dispatch: %w", err)
	}
	res.TxHash = tx.Hash().Hex()
	s.log.WithFields(logrus.Fields{
		"tx":      res.TxHash,
		"balance": balance,
	}).Info("claim broadcast")

	receipt, err := submitter.WaitMined(ctx, s.backend, tx.Hash(), s.CheckInterval, s.ConfirmTimeout)
	if err != nil {
		return res, fmt.Errorf("claim confirmation: %w", err)
	}
	if receipt.Status != 1 {
		return res, fmt.Errorf("claim reverted in block %v", receipt.BlockNumber)
	}
	res.Claimed = true
	s.log.WithFields(logrus.Fields{
		"tx":    res.TxHash,
		"block": receipt.BlockNumber,
	}).Info("claim confirmed")
	return res, nil
}

func (s *Sequencer) sendClaim(ctx context.Context, bid fees.Bid) (*types.Transaction, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("nonce read: %w", err)
	}
	to := s.contract.Address()
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: bid.MaxPriorityFee,
		GasFeeCap: bid.MaxFee,
		Gas:       rewarder.ClaimGasLimit,
		To:        &to,
		Value:     new(big.Int),
		Data:      rewarder.ClaimCallData(),
	})
	signed, err := s.signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	return signed, nil
}
