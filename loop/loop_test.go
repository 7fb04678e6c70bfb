package loop

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-epoch-trigger/chaintime"
	"github.com/rony4d/go-epoch-trigger/claims"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/scheduler"
	"github.com/rony4d/go-epoch-trigger/submitter"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return logrus.NewEntry(l)
}

// scriptedOracle serves one canned result per call.
type scriptedOracle struct {
	samples []chaintime.EpochSample
	errs    []error
	calls   int
}

func (o *scriptedOracle) Sample(ctx context.Context) (chaintime.EpochSample, error) {
	i := o.calls
	o.calls++
	if i >= len(o.samples) {
		i = len(o.samples) - 1
	}
	if o.errs != nil && o.errs[i] != nil {
		return chaintime.EpochSample{}, o.errs[i]
	}
	return o.samples[i], nil
}

// blockingOracle serves one good sample, then hangs until the caller's
// context expires.
type blockingOracle struct {
	first chaintime.EpochSample
	calls int
}

func (o *blockingOracle) Sample(ctx context.Context) (chaintime.EpochSample, error) {
	o.calls++
	if o.calls == 1 {
		return o.first, nil
	}
	<-ctx.Done()
	return chaintime.EpochSample{}, fmt.Errorf("%w: %v", chaintime.ErrChainUnavailable, ctx.Err())
}

type staticFees struct{}

func (staticFees) Read(ctx context.Context) (fees.NetworkData, error) {
	return fees.NetworkData{TipCap: big.NewInt(2e9), GasPrice: big.NewInt(4e9)}, nil
}

// recordingSubmitter scripts per-call errors and records targets and bids.
type recordingSubmitter struct {
	errs    []error
	targets []idx.Epoch
	bids    []fees.Bid
}

func (s *recordingSubmitter) Submit(ctx context.Context, target idx.Epoch, bid fees.Bid) (submitter.Outcome, error) {
	s.targets = append(s.targets, target)
	s.bids = append(s.bids, bid)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return submitter.Outcome{}, err
		}
	}
	return submitter.Outcome{Dispatched: true, Confirmed: true}, nil
}

type countingClaimer struct{ calls int }

func (c *countingClaimer) MaybeClaim(ctx context.Context, bid fees.Bid) (claims.Result, error) {
	c.calls++
	return claims.Result{Balance: big.NewInt(0)}, nil
}

func sampleFor(epoch idx.Epoch, into time.Duration) chaintime.EpochSample {
	return chaintime.EpochSample{
		Epoch:       epoch,
		IntoEpoch:   into,
		EpochLength: 10 * time.Minute,
		SampledAt:   time.Unix(1_000_000, 0),
	}
}

func newLoopForTest(t *testing.T, oracle Oracle, sub Submitter, claimer Claimer, cfg Config) *Loop {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Strategy.Mode == 0 && cfg.Strategy.ManualWei == nil {
		cfg.Strategy = fees.Strategy{Mode: fees.ModeNetwork}
	}
	sched, err := scheduler.New(scheduler.Config{Policy: scheduler.ReactiveOnChain, Window: 15 * time.Second})
	require.NoError(t, err)
	l, err := New(cfg, oracle, sched, staticFees{}, sub, claimer, nil, testLog())
	require.NoError(t, err)
	l.now = func() time.Time { return time.Unix(1_000_000, 0) }
	return l
}

func TestLoop_firesOncePerEpochAcrossTicks(t *testing.T) {
	require := require.New(t)

	oracle := &scriptedOracle{samples: []chaintime.EpochSample{
		sampleFor(7, 5*time.Second),
		sampleFor(7, 9*time.Second),  // window still open, already fired
		sampleFor(7, 20*time.Second), // window closed
		sampleFor(8, 2*time.Second),  // next epoch
	}}
	sub := &recordingSubmitter{}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{})

	for i := 0; i < 4; i++ {
		require.NoError(l.safeTick(context.Background()))
	}
	require.Equal([]idx.Epoch{7, 8}, sub.targets, "exactly one dispatch per epoch")
}

func TestLoop_chainFailureServesCachedSample(t *testing.T) {
	require := require.New(t)

	boom := fmt.Errorf("%w: rpc down", chaintime.ErrChainUnavailable)
	oracle := &scriptedOracle{
		samples: []chaintime.EpochSample{sampleFor(7, 5*time.Second), {}},
		errs:    []error{nil, boom},
	}
	sub := &recordingSubmitter{errs: []error{fmt.Errorf("%w: busy", submitter.ErrSubmissionRejected)}}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{})

	// Tick 1: sample ok, submission rejected -> mark not advanced.
	require.NoError(l.safeTick(context.Background()))
	// Tick 2: chain read fails, the cached sample keeps the window open
	// and the submission is retried.
	require.NoError(l.safeTick(context.Background()))

	require.Equal([]idx.Epoch{7, 7}, sub.targets)
	_, fired := l.sched.FiredMark()
	require.True(fired, "second attempt succeeded and advanced the mark")
}

func TestLoop_hungChainReadFallsBackToCachedSample(t *testing.T) {
	require := require.New(t)

	oracle := &blockingOracle{first: sampleFor(7, 5*time.Second)}
	sub := &recordingSubmitter{errs: []error{fmt.Errorf("%w: busy", submitter.ErrSubmissionRejected)}}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{RPCTimeout: 10 * time.Millisecond})

	// Tick 1: sample ok, submission rejected -> mark not advanced.
	require.NoError(l.safeTick(context.Background()))
	// Tick 2: the oracle hangs instead of failing. The per-call timeout
	// abandons it, the cached sample keeps the window open, and the
	// submission is retried.
	start := time.Now()
	require.NoError(l.safeTick(context.Background()))
	require.Less(int64(time.Since(start)), int64(time.Second), "hung read must be abandoned, not waited out")

	require.Equal([]idx.Epoch{7, 7}, sub.targets)
	_, fired := l.sched.FiredMark()
	require.True(fired, "second attempt succeeded and advanced the mark")
}

func TestLoop_raisesTipToFloor(t *testing.T) {
	require := require.New(t)

	// staticFees reports a 2 gwei tip; the floor sits above it.
	oracle := &scriptedOracle{samples: []chaintime.EpochSample{sampleFor(7, 5*time.Second)}}
	sub := &recordingSubmitter{}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{MinTipWei: big.NewInt(3e9)})

	require.NoError(l.safeTick(context.Background()))
	require.Len(sub.bids, 1)
	require.Equal(big.NewInt(3e9), sub.bids[0].MaxPriorityFee, "tip raised to the floor")
	require.True(sub.bids[0].MaxFee.Cmp(sub.bids[0].MaxPriorityFee) >= 0)

	// A fixed manual bid below the floor is raised too, both fields.
	oracle = &scriptedOracle{samples: []chaintime.EpochSample{sampleFor(7, 5*time.Second)}}
	sub = &recordingSubmitter{}
	l = newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{
		Strategy:  fees.Strategy{Mode: fees.ModeFixed, ManualWei: big.NewInt(1e9)},
		MinTipWei: big.NewInt(2e9),
	})
	require.NoError(l.safeTick(context.Background()))
	require.Len(sub.bids, 1)
	require.Equal(big.NewInt(2e9), sub.bids[0].MaxPriorityFee)
	require.Equal(big.NewInt(2e9), sub.bids[0].MaxFee)
}

// countingBeacon records the informational reads the status report makes.
type countingBeacon struct {
	attesterCalls  int
	claimableCalls int
}

func (b *countingBeacon) ActiveAttesterCount(ctx context.Context) (uint64, error) {
	b.attesterCalls++
	return 120_000, nil
}

func (b *countingBeacon) IsRewardsClaimable(ctx context.Context) (bool, error) {
	b.claimableCalls++
	return true, nil
}

func TestLoop_reportsBeaconStatusWhenAttached(t *testing.T) {
	require := require.New(t)

	oracle := &scriptedOracle{samples: []chaintime.EpochSample{sampleFor(7, 60*time.Second)}}
	b := &countingBeacon{}
	l := newLoopForTest(t, oracle, &recordingSubmitter{}, &countingClaimer{}, Config{})
	l.AttachBeacon(b)

	require.NoError(l.safeTick(context.Background()))
	require.NoError(l.safeTick(context.Background()))
	require.Equal(2, b.attesterCalls, "every status report reads the attester count")
	require.Equal(2, b.claimableCalls)
}

func TestLoop_skipsTickWithNoCachedSample(t *testing.T) {
	require := require.New(t)

	boom := fmt.Errorf("%w: rpc down", chaintime.ErrChainUnavailable)
	oracle := &scriptedOracle{
		samples: []chaintime.EpochSample{{}},
		errs:    []error{boom},
	}
	sub := &recordingSubmitter{}
	claimer := &countingClaimer{}
	l := newLoopForTest(t, oracle, sub, claimer, Config{})

	require.NoError(l.safeTick(context.Background()))
	require.Empty(sub.targets, "nothing to schedule against")
	require.Zero(claimer.calls, "skipped tick does nothing at all")
}

func TestLoop_beforeGenesisFatalOnlyOnFirstReading(t *testing.T) {
	require := require.New(t)

	genesisErr := fmt.Errorf("%w: head=100 genesis=200", chaintime.ErrBeforeGenesis)

	// First reading before genesis: fatal.
	oracle := &scriptedOracle{samples: []chaintime.EpochSample{{}}, errs: []error{genesisErr}}
	l := newLoopForTest(t, oracle, &recordingSubmitter{}, &countingClaimer{}, Config{})
	err := l.safeTick(context.Background())
	require.Error(err)
	require.True(errors.Is(err, chaintime.ErrBeforeGenesis))

	// Same condition after a good sample: transient, served from cache.
	oracle = &scriptedOracle{
		samples: []chaintime.EpochSample{sampleFor(7, 20*time.Second), {}},
		errs:    []error{nil, genesisErr},
	}
	l = newLoopForTest(t, oracle, &recordingSubmitter{}, &countingClaimer{}, Config{})
	require.NoError(l.safeTick(context.Background()))
	require.NoError(l.safeTick(context.Background()))
}

func TestLoop_noEligibleTargetAdvancesMark(t *testing.T) {
	require := require.New(t)

	oracle := &scriptedOracle{samples: []chaintime.EpochSample{
		sampleFor(7, 5*time.Second),
		sampleFor(7, 9*time.Second),
	}}
	sub := &recordingSubmitter{errs: []error{submitter.ErrNoEligibleTarget}}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{})

	require.NoError(l.safeTick(context.Background()))
	require.NoError(l.safeTick(context.Background()))

	require.Equal([]idx.Epoch{7}, sub.targets, "benign no-work outcome must not be retried")
	mark, ok := l.sched.FiredMark()
	require.True(ok)
	require.EqualValues(7, mark)
}

func TestLoop_escalatesFeesAcrossRetries(t *testing.T) {
	require := require.New(t)

	rejected := fmt.Errorf("%w: underpriced", submitter.ErrSubmissionRejected)
	oracle := &scriptedOracle{samples: []chaintime.EpochSample{
		sampleFor(7, 2*time.Second),
		sampleFor(7, 5*time.Second),
		sampleFor(7, 8*time.Second),
	}}
	sub := &recordingSubmitter{errs: []error{rejected, rejected, nil}}
	l := newLoopForTest(t, oracle, sub, &countingClaimer{}, Config{EscalatePercent: 20})

	for i := 0; i < 3; i++ {
		require.NoError(l.safeTick(context.Background()))
	}
	require.Len(sub.bids, 3)
	require.True(sub.bids[1].MaxPriorityFee.Cmp(sub.bids[0].MaxPriorityFee) > 0,
		"second attempt bids a higher tip")
	require.True(sub.bids[2].MaxPriorityFee.Cmp(sub.bids[1].MaxPriorityFee) > 0,
		"third attempt escalates further")
	require.Equal(0, l.attempts, "success resets the escalation counter")
}

func TestLoop_claimRunsEveryUsableTickAndAfterFiring(t *testing.T) {
	require := require.New(t)

	oracle := &scriptedOracle{samples: []chaintime.EpochSample{
		sampleFor(7, 2*time.Second),  // fires: claim before + after
		sampleFor(7, 60*time.Second), // no fire: one claim
	}}
	claimer := &countingClaimer{}
	l := newLoopForTest(t, oracle, &recordingSubmitter{}, claimer, Config{})

	require.NoError(l.safeTick(context.Background()))
	require.NoError(l.safeTick(context.Background()))
	require.Equal(3, claimer.calls)
}

func TestLoop_panicInTickIsContained(t *testing.T) {
	oracle := &scriptedOracle{} // zero samples: Sample will panic on index -1
	l := newLoopForTest(t, oracle, &recordingSubmitter{}, &countingClaimer{}, Config{})

	if err := l.safeTick(context.Background()); err != nil {
		t.Fatalf("panic must be contained, got error %v", err)
	}
}

func TestLoop_runStopsOnContextCancel(t *testing.T) {
	require := require.New(t)

	oracle := &scriptedOracle{samples: []chaintime.EpochSample{sampleFor(7, 60*time.Second)}}
	l := newLoopForTest(t, oracle, &recordingSubmitter{}, &countingClaimer{},
		Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(err, "cooperative stop exits cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestNew_rejectsNonPositiveInterval(t *testing.T) {
	sched, err := scheduler.New(scheduler.Config{Policy: scheduler.ReactiveOnChain, Window: time.Second})
	require.NoError(t, err)
	_, err = New(Config{}, &scriptedOracle{}, sched, staticFees{}, &recordingSubmitter{}, &countingClaimer{}, nil, testLog())
	require.Error(t, err)
}
