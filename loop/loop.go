// Package loop drives the bot: one tick at a fixed interval, each tick a
// finite sequence of suspending calls into the leaf components. A tick
// samples chain time, reports status, sweeps claimable rewards, evaluates
// the trigger policy, and submits when due.
//
// Ticks never overlap and a tick's failure never terminates the process:
// every tick runs inside a failure boundary that logs and moves on. The
// only fatal condition is a chain head before genesis on the very first
// reading, which means the deployment is misconfigured.
package loop

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-epoch-trigger/chaintime"
	"github.com/rony4d/go-epoch-trigger/claims"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/scheduler"
	"github.com/rony4d/go-epoch-trigger/submitter"
)

// Oracle samples the chain's epoch position.
type Oracle interface {
	Sample(ctx context.Context) (chaintime.EpochSample, error)
}

// FeeSource reads the current network fee picture.
type FeeSource interface {
	Read(ctx context.Context) (fees.NetworkData, error)
}

// Submitter dispatches the trigger transaction for a target epoch.
type Submitter interface {
	Submit(ctx context.Context, targetEpoch idx.Epoch, bid fees.Bid) (submitter.Outcome, error)
}

// Claimer sweeps the wallet's claimable balance when due.
type Claimer interface {
	MaybeClaim(ctx context.Context, bid fees.Bid) (claims.Result, error)
}

// BalanceReader reads a wallet's native balance, for the low-funds
// warning. Optional.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// BeaconInfo exposes the slot beacon's informational reads, reported with
// the tick status under the slot model. Optional.
type BeaconInfo interface {
	ActiveAttesterCount(ctx context.Context) (uint64, error)
	IsRewardsClaimable(ctx context.Context) (bool, error)
}

// Config tunes the loop.
type Config struct {
	// PollInterval is the tick cadence.
	PollInterval time.Duration

	// RPCTimeout bounds each individual chain read so a hung endpoint
	// cannot stall the tick; the cached-sample fallback takes over when a
	// read is abandoned. Zero disables the bound.
	RPCTimeout time.Duration

	// Strategy shapes the fee bid built fresh every tick.
	Strategy fees.Strategy

	// MinTipWei is a floor under the estimated priority fee; bids below it
	// are raised to it before submission. Nil disables the floor.
	MinTipWei *big.Int

	// EscalatePercent bumps the priority fee per retry after a rejected
	// submission within the same window. Zero disables escalation.
	EscalatePercent int64

	// MaxFeeCapWei bounds escalation. Nil means uncapped.
	MaxFeeCapWei *big.Int

	// Wallet and BalanceFloorWei drive the low-funds warning; the check
	// is skipped when either is zero.
	Wallet          common.Address
	BalanceFloorWei *big.Int
}

// Loop owns all mutable scheduling state. It is driven by a single
// goroutine; nothing here needs locking.
type Loop struct {
	cfg     Config
	oracle  Oracle
	clock   *chaintime.LocalClock
	sched   *scheduler.Scheduler
	feeSrc  FeeSource
	sub     Submitter
	claimer Claimer
	funds   BalanceReader
	beacon  BeaconInfo
	log     *logrus.Entry

	cached     *chaintime.EpochSample
	everSynced bool
	attempts   int

	// now is stubbed in tests.
	now func() time.Time
}

func New(cfg Config, oracle Oracle, sched *scheduler.Scheduler, feeSrc FeeSource,
	sub Submitter, claimer Claimer, funds BalanceReader, log *logrus.Entry) (*Loop, error) {

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.PollInterval)
	}
	return &Loop{
		cfg:     cfg,
		oracle:  oracle,
		clock:   &chaintime.LocalClock{},
		sched:   sched,
		feeSrc:  feeSrc,
		sub:     sub,
		claimer: claimer,
		funds:   funds,
		log:     log,
		now:     time.Now,
	}, nil
}

// AttachBeacon adds the slot beacon's informational reads to the tick
// status report.
func (l *Loop) AttachBeacon(b BeaconInfo) { l.beacon = b }

// callCtx derives the timeout context for one chain read.
func (l *Loop) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.RPCTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.cfg.RPCTimeout)
}

// Run ticks until ctx is cancelled. Cancellation is honored at tick
// boundaries, never mid-flight. The only error Run returns is the fatal
// before-genesis condition on the first chain reading.
func (l *Loop) Run(ctx context.Context) error {
	l.log.WithFields(logrus.Fields{
		"interval": l.cfg.PollInterval,
		"policy":   l.sched.Config().Policy,
	}).Info("poll loop started")

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := l.safeTick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			l.log.Info("poll loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// safeTick is the per-tick failure boundary: panics and non-fatal errors
// are logged, the loop proceeds.
func (l *Loop) safeTick(ctx context.Context) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Error("tick panicked, continuing")
		}
	}()
	return l.tick(ctx)
}

func (l *Loop) tick(ctx context.Context) error {
	sample, ok, err := l.currentSample(ctx)
	if err != nil {
		return err // fatal only
	}
	if !ok {
		return nil // nothing to work with yet, tick skipped
	}

	local, hasLocal := l.clock.Extrapolate(l.now())
	l.reportStatus(ctx, sample, local, hasLocal)
	l.checkFunds(ctx)

	bid, bidOK := l.buildBid(ctx)
	if bidOK {
		l.claimIfDue(ctx, bid)
	}

	decision := l.sched.Evaluate(sample, local)
	if !decision.Fire {
		return nil
	}
	if !bidOK {
		l.log.Warn("trigger window open but no usable fee bid, retrying next tick")
		return nil
	}
	l.fire(ctx, decision.Target, bid)
	return nil
}

// currentSample reads the chain, falling back to the cached sample when
// the read fails. The bool reports whether any sample is usable.
func (l *Loop) currentSample(ctx context.Context) (chaintime.EpochSample, bool, error) {
	callCtx, cancel := l.callCtx(ctx)
	sample, err := l.oracle.Sample(callCtx)
	cancel()
	if err == nil {
		if l.clock.Anchored() {
			if drift, ok := l.clock.Drift(sample); ok {
				l.log.WithField("drift", drift).Debug("local clock drift against chain sample")
			}
		}
		l.clock.Reanchor(sample)
		l.cached = &sample
		l.everSynced = true
		return sample, true, nil
	}

	if errors.Is(err, chaintime.ErrBeforeGenesis) && !l.everSynced {
		// First reading already predates genesis: the deployment is
		// misconfigured, not transiently unlucky.
		return chaintime.EpochSample{}, false, fmt.Errorf("fatal chain-time configuration: %w", err)
	}

	if l.cached == nil {
		l.log.WithError(err).Warn("chain read failed before any sample was cached, skipping tick")
		return chaintime.EpochSample{}, false, nil
	}
	l.log.WithError(err).Warn("chain read failed, serving cached sample")
	return *l.cached, true, nil
}

func (l *Loop) reportStatus(ctx context.Context, sample chaintime.EpochSample, local chaintime.LocalView, hasLocal bool) {
	fields := logrus.Fields{
		"epoch":     sample.Epoch,
		"intoEpoch": sample.IntoEpoch,
		"untilNext": sample.UntilNext(),
	}
	if hasLocal {
		fields["localEpoch"] = local.Epoch
		fields["localInto"] = local.IntoEpoch
	}
	if mark, ok := l.sched.FiredMark(); ok {
		fields["firedMark"] = mark
	}
	if l.beacon != nil {
		// Informational reads; a failed one just drops out of the report.
		callCtx, cancel := l.callCtx(ctx)
		if attesters, err := l.beacon.ActiveAttesterCount(callCtx); err == nil {
			fields["attesters"] = attesters
		}
		if claimable, err := l.beacon.IsRewardsClaimable(callCtx); err == nil {
			fields["claimable"] = claimable
		}
		cancel()
	}
	l.log.WithFields(fields).Info("tick")
}

func (l *Loop) checkFunds(ctx context.Context) {
	if l.funds == nil || l.cfg.BalanceFloorWei == nil || l.cfg.BalanceFloorWei.Sign() <= 0 {
		return
	}
	callCtx, cancel := l.callCtx(ctx)
	balance, err := l.funds.BalanceAt(callCtx, l.cfg.Wallet, nil)
	cancel()
	if err != nil {
		return // informational check only
	}
	if balance.Cmp(l.cfg.BalanceFloorWei) < 0 {
		l.log.WithFields(logrus.Fields{
			"balance": balance,
			"floor":   l.cfg.BalanceFloorWei,
		}).Warn("trigger wallet native balance below floor")
	}
}

// buildBid assembles this tick's fee bid, applying retry escalation when
// the previous submissions for the open window were rejected.
func (l *Loop) buildBid(ctx context.Context) (fees.Bid, bool) {
	callCtx, cancel := l.callCtx(ctx)
	data, err := l.feeSrc.Read(callCtx)
	cancel()
	if err != nil {
		// An empty picture still estimates under fixed mode and falls
		// back to the documented defaults otherwise.
		l.log.WithError(err).Warn("fee readings failed, estimating from defaults")
		data = fees.NetworkData{}
	}
	bid, err := fees.Estimate(data, l.cfg.Strategy)
	if err != nil {
		l.log.WithError(err).Warn("fee estimation failed")
		return fees.Bid{}, false
	}
	if min := l.cfg.MinTipWei; min != nil && bid.MaxPriorityFee.Cmp(min) < 0 {
		bid.MaxPriorityFee = new(big.Int).Set(min)
		if bid.MaxFee.Cmp(bid.MaxPriorityFee) < 0 {
			bid.MaxFee = new(big.Int).Set(bid.MaxPriorityFee)
		}
	}
	for i := 0; i < l.attempts && l.cfg.EscalatePercent > 0; i++ {
		bid = fees.Escalate(bid, l.cfg.EscalatePercent, l.cfg.MaxFeeCapWei)
	}
	return bid, true
}

func (l *Loop) claimIfDue(ctx context.Context, bid fees.Bid) {
	res, err := l.claimer.MaybeClaim(ctx, bid)
	if err != nil {
		l.log.WithError(err).Warn("claim pass failed")
		return
	}
	if res.Claimed {
		l.log.WithFields(logrus.Fields{
			"amount": res.Balance,
			"tx":     res.TxHash,
		}).Info("rewards claimed")
	}
}

func (l *Loop) fire(ctx context.Context, target idx.Epoch, bid fees.Bid) {
	l.log.WithFields(logrus.Fields{
		"target":  target,
		"maxFee":  bid.MaxFee,
		"tip":     bid.MaxPriorityFee,
		"attempt": l.attempts + 1,
	}).Info("trigger window open, submitting")

	outcome, err := l.sub.Submit(ctx, target, bid)
	switch {
	case err == nil:
		l.sched.MarkFired(target)
		l.attempts = 0
		l.log.WithFields(logrus.Fields{
			"target":    target,
			"confirmed": outcome.Confirmed,
			"relaysOK":  outcome.AcceptedCount(),
		}).Info("trigger dispatched")
		// A confirmed trigger usually grows the claimable balance; sweep
		// right away instead of waiting a full tick.
		l.claimIfDue(ctx, bid)

	case errors.Is(err, submitter.ErrNoEligibleTarget):
		// Nothing to trigger this epoch. Counts as handled so the window
		// is not hammered.
		l.sched.MarkFired(target)
		l.attempts = 0
		l.log.WithField("target", target).Info("no pending work for this epoch")

	default:
		// Transient rejection: the mark stays, the window is retried with
		// an escalated bid on the next eligible tick.
		l.attempts++
		l.log.WithError(err).WithFields(logrus.Fields{
			"target":  target,
			"attempt": l.attempts,
		}).Warn("submission rejected, will retry within window")
	}
}
